package notification

import (
	"fmt"
	"time"

	"github.com/uma-arai/sbcntr-pickup/internal/line"
	"github.com/uma-arai/sbcntr-pickup/internal/model"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const (
	colorPrimary = "#06C755"
	colorMuted   = "#888888"
	colorDanger  = "#E53935"
)

// Templater は予約からFlex Messageを組み立てます
type Templater struct {
	publicBaseURL string
	printer       *message.Printer
}

func NewTemplater(publicBaseURL string) *Templater {
	return &Templater{
		publicBaseURL: publicBaseURL,
		printer:       message.NewPrinter(language.Japanese),
	}
}

// CancelURL は予約の取消用URLを返します
func (t *Templater) CancelURL(cancelToken string) string {
	return t.publicBaseURL + "/reservations/cancel/" + cancelToken
}

type kindText struct {
	title   string
	altText string
	lead    string
	color   string
}

var kindTexts = map[model.NotificationKind]kindText{
	model.NotificationKindConfirmation: {
		title:   "ご予約ありがとうございます",
		altText: "ご予約を承りました",
		lead:    "以下の内容でご予約を承りました。",
		color:   colorPrimary,
	},
	model.NotificationKindReminder: {
		title:   "受け取り日のお知らせ",
		altText: "明日は商品の受け取り日です",
		lead:    "ご予約の商品の受け取り日が近づいています。",
		color:   colorPrimary,
	},
	model.NotificationKindCancellation: {
		title:   "ご予約をキャンセルしました",
		altText: "ご予約のキャンセルを承りました",
		lead:    "以下のご予約をキャンセルしました。",
		color:   colorDanger,
	},
}

// Render は通知種別に応じたメッセージを作成します
func (t *Templater) Render(kind model.NotificationKind, r *model.Reservation) (line.FlexMessage, error) {
	text, ok := kindTexts[kind]
	if !ok {
		return line.FlexMessage{}, fmt.Errorf("unknown notification kind: %s", kind)
	}
	if r == nil {
		return line.FlexMessage{}, fmt.Errorf("reservation is required")
	}

	header := line.NewBox("vertical", line.Text{
		Type:   "text",
		Text:   text.title,
		Weight: "bold",
		Size:   "lg",
		Color:  "#FFFFFF",
	})
	header.BackgroundColor = text.color
	header.PaddingAll = "16px"

	body := line.NewBox("vertical",
		line.Text{Type: "text", Text: text.lead, Wrap: true, Size: "sm"},
		line.NewSeparator("md"),
		t.row("予約番号", shortID(r.ID)),
		t.row("お名前", r.UserName+" 様"),
		t.row("受け取り日時", pickupLabel(r)),
		line.NewSeparator("md"),
	)
	body.Spacing = "sm"
	for _, p := range r.SelectedProducts {
		body.Contents = append(body.Contents,
			t.row(t.printer.Sprintf("%s × %d", p.Name, p.Quantity), t.yen(p.TotalPrice)))
	}
	body.Contents = append(body.Contents,
		line.NewSeparator("md"),
		line.NewBox("horizontal",
			line.Text{Type: "text", Text: "合計", Weight: "bold", Size: "md"},
			line.Text{Type: "text", Text: t.yen(r.TotalAmount), Weight: "bold", Size: "md", Align: "end"},
		),
	)

	bubble := line.Bubble{Type: "bubble", Header: header, Body: body}
	if kind != model.NotificationKindCancellation && r.CancelToken != "" {
		footer := line.NewBox("vertical",
			line.NewURIButton("予約をキャンセルする", t.CancelURL(r.CancelToken), "secondary"),
		)
		bubble.Footer = footer
	}

	return line.NewFlexMessage(text.altText, bubble), nil
}

func (t *Templater) row(label, value string) *line.Box {
	labelFlex, valueFlex := 2, 4
	return line.NewBox("baseline",
		line.Text{Type: "text", Text: label, Size: "sm", Color: colorMuted, Flex: &labelFlex},
		line.Text{Type: "text", Text: value, Size: "sm", Wrap: true, Flex: &valueFlex},
	)
}

func (t *Templater) yen(amount int64) string {
	return t.printer.Sprintf("¥%d", amount)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func pickupLabel(r *model.Reservation) string {
	if r.PickupDate == nil || *r.PickupDate == "" {
		if r.PickupTime == "" {
			return "店舗からのご連絡をお待ちください"
		}
		return r.PickupTime
	}

	label := *r.PickupDate
	if d, err := time.Parse(time.DateOnly, *r.PickupDate); err == nil {
		label = fmt.Sprintf("%d月%d日(%s)", d.Month(), d.Day(), weekdays[d.Weekday()])
	}
	if r.PickupTime != "" {
		label += " " + r.PickupTime
	}
	return label
}

var weekdays = [...]string{"日", "月", "火", "水", "木", "金", "土"}
