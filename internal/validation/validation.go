package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/uma-arai/sbcntr-pickup/internal/apperror"
	"github.com/uma-arai/sbcntr-pickup/internal/model"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// メッセージにはJSONのフィールド名を使う
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})

	mustRegister(v, "notblank", notBlank)
	mustRegister(v, "phone", phoneNumber)
	v.RegisterStructValidation(uniquePresetProducts, model.UpdatePresetConfigInput{})
	return v
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("failed to register validation %q: %v", tag, err))
	}
}

// Struct はsのvalidateタグを検証し、違反をすべてmsgsに追加します
func Struct(msgs *apperror.Messages, s any) {
	err := validate.Struct(s)
	if err == nil {
		return
	}
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		msgs.Add("%v", err)
		return
	}
	for _, fe := range errs {
		msgs.Add("%s", message(fe))
	}
}

// message はフィールドの違反を "selected_products[0].quantity must be >= 1" の形式にします
func message(fe validator.FieldError) string {
	field := fe.Namespace()
	if _, rest, ok := strings.Cut(field, "."); ok {
		field = rest
	}

	param := fe.Param()
	switch fe.Tag() {
	case "required", "notblank":
		return field + " is required"
	case "gt":
		if param == "0" {
			return field + " must be a positive integer"
		}
		return fmt.Sprintf("%s must be > %s", field, param)
	case "gte", "min":
		switch fe.Kind() {
		case reflect.String:
			return fmt.Sprintf("%s must be at least %s characters", field, param)
		case reflect.Slice, reflect.Map:
			return fmt.Sprintf("%s must contain at least %s item(s)", field, param)
		}
		return fmt.Sprintf("%s must be >= %s", field, param)
	case "lte", "max":
		switch fe.Kind() {
		case reflect.String:
			return fmt.Sprintf("%s must be at most %s characters", field, param)
		case reflect.Slice, reflect.Map:
			return fmt.Sprintf("%s must contain at most %s item(s)", field, param)
		}
		return fmt.Sprintf("%s must be <= %s", field, param)
	case "unique":
		if param != "" {
			return fmt.Sprintf("%s must not contain duplicate %s", field, jsonName(fe, param))
		}
		return field + " must not contain duplicates"
	case "datetime":
		return fmt.Sprintf("%s must be in %s format", field, layoutLabel(param))
	case "phone":
		return field + " is invalid"
	}
	return fmt.Sprintf("%s is invalid (%s)", field, fe.Tag())
}

// jsonName はunique=Fieldで指定された要素のフィールド名をJSON名に変換します
func jsonName(fe validator.FieldError, fieldName string) string {
	t := fe.Type()
	for t.Kind() == reflect.Slice || t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() == reflect.Struct {
		if f, ok := t.FieldByName(fieldName); ok {
			if name, _, _ := strings.Cut(f.Tag.Get("json"), ","); name != "" && name != "-" {
				return name
			}
		}
	}
	return fieldName
}

func layoutLabel(layout string) string {
	if layout == "2006-01-02" {
		return "YYYY-MM-DD"
	}
	return layout
}

// notBlank は前後の空白を除いて空でないことを検証します
func notBlank(fl validator.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}

// phoneNumber は数字10〜15桁と区切り文字(- + 空白 括弧)のみを許可します
func phoneNumber(fl validator.FieldLevel) bool {
	phone := strings.TrimSpace(fl.Field().String())
	if phone == "" {
		return true
	}
	digits := 0
	for _, r := range phone {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case r == '-' || r == '+' || r == ' ' || r == '(' || r == ')':
		default:
			return false
		}
	}
	return digits >= 10 && digits <= 15
}

// uniquePresetProducts は商品の紐付けで同じ商品IDが重複していないことを検証します
// 要素ごとの検証結果も残すため、diveとは別に構造体単位で検査します
func uniquePresetProducts(sl validator.StructLevel) {
	in := sl.Current().Interface().(model.UpdatePresetConfigInput)
	seen := make(map[int64]bool, len(in.Products))
	for _, p := range in.Products {
		if p.ProductID > 0 && seen[p.ProductID] {
			sl.ReportError(in.Products, "products", "Products", "unique", "ProductID")
			return
		}
		seen[p.ProductID] = true
	}
}
