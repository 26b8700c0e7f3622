// Package validation はgo-playground/validatorによるリクエスト検証を提供する。
//
// 計測値の数値フィールドはJSONの数値と数値文字列（"120"）の両方を受け付けるため、
// 型をanyで受け取り、独自タグ numeric_value / timestamp_value で検証する。
// フィールドごとのエラーメッセージは構造体タグ message で指定する。
package validation

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/hitoshi/healthtrack/internal/model"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// GetValidator はカスタムタグ登録済みのvalidatorを返す。スレッドセーフ。
func GetValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())

		// エラーのフィールド名をJSON名にする
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return fld.Name
			}
			return name
		})

		// 登録失敗はタグ名の誤りなので起動時に落とす
		mustRegister(validate, "numeric_value", isNumericValue)
		mustRegister(validate, "string_value", isStringValue)
		mustRegister(validate, "timestamp_value", isTimestampValue)
	})

	return validate
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("validation: failed to register %s: %v", tag, err))
	}
}

// ValidateStruct は構造体を検証し、失敗したすべてのフィールドを含むValidationFailedを返す。
// 検証を通過した場合はnilを返す。
func ValidateStruct(s any) *model.APIError {
	err := GetValidator().Struct(s)
	if err == nil {
		return nil
	}

	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return model.NewValidationFailedError([]model.FieldError{
			{Field: "body", Message: err.Error()},
		})
	}

	structType := reflect.TypeOf(s)
	for structType.Kind() == reflect.Ptr {
		structType = structType.Elem()
	}

	fields := make([]model.FieldError, len(validationErrs))
	for i, fe := range validationErrs {
		fields[i] = model.FieldError{
			Field:   fe.Field(),
			Message: messageFor(structType, fe),
			Value:   fe.Value(),
		}
	}

	return model.NewValidationFailedError(fields)
}

// messageFor は構造体タグ message があればそれを、なければタグ別の定型文を返す。
func messageFor(structType reflect.Type, fe validator.FieldError) string {
	if sf, ok := structType.FieldByName(fe.StructField()); ok {
		if msg := sf.Tag.Get("message"); msg != "" {
			return msg
		}
	}

	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "numeric_value":
		return fmt.Sprintf("%s must be numeric", fe.Field())
	case "string_value":
		return fmt.Sprintf("%s must be a string", fe.Field())
	case "timestamp_value":
		return fmt.Sprintf("%s must be an RFC3339 date, a datetime-local value or epoch milliseconds", fe.Field())
	case "min", "gte":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "max", "lte":
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag())
	}
}

func isNumericValue(fl validator.FieldLevel) bool {
	_, ok := toFloat(fl.Field())
	return ok
}

func isStringValue(fl validator.FieldLevel) bool {
	return fl.Field().Kind() == reflect.String
}

// isTimestampValue は空文字列を未指定として通す。
func isTimestampValue(fl validator.FieldLevel) bool {
	if fl.Field().Kind() == reflect.String && strings.TrimSpace(fl.Field().String()) == "" {
		return true
	}
	_, ok := toTime(fl.Field())
	return ok
}

// Number はJSON数値または数値文字列をfloat64に変換する。
// 検証済みの値に対して使う。変換できない場合はfalseを返す。
func Number(v any) (float64, bool) {
	if v == nil {
		return 0, false
	}
	return toFloat(reflect.ValueOf(v))
}

// タイムゾーンなしの文字列（datetime-local形式）はUTCとして解釈する。
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
}

// maxEpochMillis は受け付けるエポックミリ秒の上限（9999-12-31T23:59:59.999Z）。
var maxEpochMillis = float64(time.Date(9999, 12, 31, 23, 59, 59, 999_000_000, time.UTC).UnixMilli())

// Timestamp はRFC3339文字列、datetime-local文字列、エポックミリ秒を時刻に変換する。
// nilや空文字列の場合はfallbackを返す。
func Timestamp(v any, fallback time.Time) (time.Time, bool) {
	if v == nil {
		return fallback, true
	}
	if s, ok := v.(string); ok && strings.TrimSpace(s) == "" {
		return fallback, true
	}
	return toTime(reflect.ValueOf(v))
}

func toFloat(v reflect.Value) (float64, bool) {
	var f float64
	switch v.Kind() {
	case reflect.Float32, reflect.Float64:
		f = v.Float()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		f = float64(v.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		f = float64(v.Uint())
	case reflect.String:
		s := strings.TrimSpace(v.String())
		if s == "" {
			return 0, false
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func toTime(v reflect.Value) (time.Time, bool) {
	if v.Kind() == reflect.String {
		s := strings.TrimSpace(v.String())
		for _, layout := range timestampLayouts {
			t, err := time.ParseInLocation(layout, s, time.UTC)
			if err != nil {
				continue
			}
			if t.Year() < 1 || t.Year() > 9999 {
				return time.Time{}, false
			}
			return t, true
		}
		return time.Time{}, false
	}

	ms, ok := toFloat(v)
	if !ok || ms < 0 || ms > maxEpochMillis {
		return time.Time{}, false
	}
	return time.UnixMilli(int64(ms)).UTC(), true
}
