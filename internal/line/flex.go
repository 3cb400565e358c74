package line

// Message はMessaging APIのメッセージオブジェクトです
type Message interface {
	messageType() string
}

// FlexMessage はFlex Messageです
type FlexMessage struct {
	Type     string `json:"type"`
	AltText  string `json:"altText"`
	Contents Bubble `json:"contents"`
}

func (FlexMessage) messageType() string { return "flex" }

// NewFlexMessage はバブル1つのFlex Messageを作成します
func NewFlexMessage(altText string, bubble Bubble) FlexMessage {
	return FlexMessage{Type: "flex", AltText: altText, Contents: bubble}
}

// TextMessage はテキストメッセージです
type TextMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func (TextMessage) messageType() string { return "text" }

func NewTextMessage(text string) TextMessage {
	return TextMessage{Type: "text", Text: text}
}

// Component はBox内に配置できる要素です
type Component interface {
	componentType() string
}

type Bubble struct {
	Type   string       `json:"type"`
	Size   string       `json:"size,omitempty"`
	Header *Box         `json:"header,omitempty"`
	Body   *Box         `json:"body,omitempty"`
	Footer *Box         `json:"footer,omitempty"`
	Styles *BubbleStyle `json:"styles,omitempty"`
}

type BubbleStyle struct {
	Header *BlockStyle `json:"header,omitempty"`
	Footer *BlockStyle `json:"footer,omitempty"`
}

type BlockStyle struct {
	BackgroundColor string `json:"backgroundColor,omitempty"`
	Separator       bool   `json:"separator,omitempty"`
}

type Box struct {
	Type            string      `json:"type"`
	Layout          string      `json:"layout"`
	Contents        []Component `json:"contents"`
	Spacing         string      `json:"spacing,omitempty"`
	Margin          string      `json:"margin,omitempty"`
	PaddingAll      string      `json:"paddingAll,omitempty"`
	BackgroundColor string      `json:"backgroundColor,omitempty"`
}

func (Box) componentType() string { return "box" }

func NewBox(layout string, contents ...Component) *Box {
	return &Box{Type: "box", Layout: layout, Contents: contents}
}

type Text struct {
	Type   string `json:"type"`
	Text   string `json:"text"`
	Size   string `json:"size,omitempty"`
	Weight string `json:"weight,omitempty"`
	Color  string `json:"color,omitempty"`
	Align  string `json:"align,omitempty"`
	Wrap   bool   `json:"wrap,omitempty"`
	Flex   *int   `json:"flex,omitempty"`
	Margin string `json:"margin,omitempty"`
}

func (Text) componentType() string { return "text" }

func NewText(text string) Text {
	return Text{Type: "text", Text: text}
}

type Separator struct {
	Type   string `json:"type"`
	Margin string `json:"margin,omitempty"`
}

func (Separator) componentType() string { return "separator" }

func NewSeparator(margin string) Separator {
	return Separator{Type: "separator", Margin: margin}
}

type Button struct {
	Type   string    `json:"type"`
	Style  string    `json:"style,omitempty"`
	Color  string    `json:"color,omitempty"`
	Height string    `json:"height,omitempty"`
	Action URIAction `json:"action"`
}

func (Button) componentType() string { return "button" }

type URIAction struct {
	Type  string `json:"type"`
	Label string `json:"label"`
	URI   string `json:"uri"`
}

func NewURIButton(label, uri, style string) Button {
	return Button{
		Type:   "button",
		Style:  style,
		Height: "sm",
		Action: URIAction{Type: "uri", Label: label, URI: uri},
	}
}
