package handlers

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/jafarshop/storefront/internal/domain"
)

var registerOnce sync.Once

// RegisterValidators installs the enum validators used in request binding tags and reports
// field names by their json tag. Safe to call more than once.
func RegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return f.Name
			}
			return name
		})
		_ = v.RegisterValidation("orderstatus", func(fl validator.FieldLevel) bool {
			return domain.OrderStatus(fl.Field().String()).IsValid()
		})
		_ = v.RegisterValidation("paymentstatus", func(fl validator.FieldLevel) bool {
			return domain.PaymentStatus(fl.Field().String()).IsValid()
		})
		_ = v.RegisterValidation("paymentmethod", func(fl validator.FieldLevel) bool {
			return domain.PaymentMethod(fl.Field().String()).IsValid()
		})
		_ = v.RegisterValidation("messagestatus", func(fl validator.FieldLevel) bool {
			return domain.MessageStatus(fl.Field().String()).IsValid()
		})
		_ = v.RegisterValidation("analyticsevent", func(fl validator.FieldLevel) bool {
			return domain.AnalyticsEventType(fl.Field().String()).IsValid()
		})
	})
}

// bindingErrors turns a ShouldBindJSON failure into the envelope's errors list
func bindingErrors(err error) []FieldError {
	var verrs validator.ValidationErrors
	if stderrors.As(err, &verrs) {
		out := make([]FieldError, 0, len(verrs))
		for _, fe := range verrs {
			out = append(out, FieldError{Field: fieldPath(fe), Message: describe(fe)})
		}
		return out
	}

	var typeErr *json.UnmarshalTypeError
	if stderrors.As(err, &typeErr) {
		return []FieldError{{Field: typeErr.Field, Message: "must be a " + typeErr.Type.String()}}
	}
	return []FieldError{{Field: "body", Message: "malformed JSON"}}
}

// fieldPath drops the struct name from the validator namespace: CreateOrderRequest.shippingAddress.city
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "url":
		return "must be a valid URL"
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at least %s characters", fe.Param())
		}
		return "must be at least " + fe.Param()
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at most %s characters", fe.Param())
		}
		return "must be at most " + fe.Param()
	case "oneof":
		return "must be one of: " + fe.Param()
	case "orderstatus", "paymentstatus", "paymentmethod", "messagestatus", "analyticsevent":
		return "is not a recognised value"
	default:
		return "is invalid (" + fe.Tag() + ")"
	}
}
