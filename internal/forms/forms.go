// Package forms binds HTML form posts and turns validation failures into
// per-field messages rendered next to the inputs.
package forms

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// FormKey holds errors that do not belong to a single field.
const FormKey = "_form"

// Errors maps form field names to messages.
type Errors map[string]string

func (e Errors) Add(field, msg string) {
	if _, exists := e[field]; !exists {
		e[field] = msg
	}
}

func (e Errors) Get(field string) string { return e[field] }

func (e Errors) Any() bool { return len(e) > 0 }

// Merge copies backend field errors that are not already reported.
func (e Errors) Merge(fields map[string]string) {
	for k, v := range fields {
		e.Add(k, v)
	}
}

var setupOnce sync.Once

func setup() {
	setupOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("form"), ",", 2)[0]
			switch name {
			case "-":
				return ""
			case "":
				return f.Name
			}
			return name
		})
	})
}

// Bind binds the request into form. It returns nil when the form is valid.
func Bind(c *gin.Context, form any) Errors {
	setup()
	if err := c.ShouldBind(form); err != nil {
		return Translate(err)
	}
	return nil
}

func Translate(err error) Errors {
	out := Errors{}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		out.Add(FormKey, "Não foi possível ler o formulário. Verifique os campos e tente novamente.")
		return out
	}
	for _, fe := range verrs {
		out.Add(fe.Field(), message(fe))
	}
	return out
}

func message(fe validator.FieldError) string {
	numeric := isNumeric(fe.Kind())
	switch fe.Tag() {
	case "required", "required_if", "required_with":
		return "Campo obrigatório."
	case "email":
		return "Informe um e-mail válido."
	case "min":
		if numeric {
			return fmt.Sprintf("Deve ser no mínimo %s.", fe.Param())
		}
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("Selecione pelo menos %s item(ns).", fe.Param())
		}
		return fmt.Sprintf("Deve ter pelo menos %s caracteres.", fe.Param())
	case "max":
		if numeric {
			return fmt.Sprintf("Deve ser no máximo %s.", fe.Param())
		}
		return fmt.Sprintf("Deve ter no máximo %s caracteres.", fe.Param())
	case "gte":
		return fmt.Sprintf("Deve ser maior ou igual a %s.", fe.Param())
	case "lte":
		return fmt.Sprintf("Deve ser menor ou igual a %s.", fe.Param())
	case "eqfield":
		return "Os valores informados não conferem."
	case "nefield":
		return "Deve ser diferente do valor atual."
	case "gtfield", "gtefield":
		return "A data deve ser posterior à data de início."
	case "oneof":
		return "Selecione uma opção válida."
	case "url":
		return "Informe uma URL válida."
	}
	return "Valor inválido."
}

func isNumeric(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}
