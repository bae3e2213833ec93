package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrValidation ist der gemeinsame Nenner aller lokalen Eingabefehler
var ErrValidation = errors.New("ungültige eingabe")

// Error beschreibt ein ungültiges Feld. Solche Fehler entstehen vor jedem Netzwerkaufruf.
type Error struct {
	Field   string
	Message string
}

func (e *Error) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *Error) Is(target error) bool {
	return target == ErrValidation
}

// New erzeugt einen Feldfehler
func New(field, message string) *Error {
	return &Error{Field: field, Message: message}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Feldnamen wie im JSON melden
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Struct prüft die validate-Tags einer Struktur und meldet den ersten Verstoß
func Struct(s interface{}) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return New(fe.Field(), message(fe))
	}
	return &Error{Message: err.Error()}
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "darf nicht leer sein"
	case "gt":
		return "muss größer als " + fe.Param() + " sein"
	case "gte":
		return "muss mindestens " + fe.Param() + " sein"
	case "lte":
		return "darf höchstens " + fe.Param() + " sein"
	case "email":
		return "ist keine gültige E-Mail-Adresse"
	case "oneof":
		return "muss einer der Werte [" + fe.Param() + "] sein"
	}
	return "verletzt Regel " + fe.Tag()
}
