package course

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	govalidator "github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

// structValidator checks decoded course documents and reports field errors in
// plain English using the JSON field names.
type structValidator struct {
	v     *govalidator.Validate
	trans ut.Translator
}

func newStructValidator() *structValidator {
	v := govalidator.New(govalidator.WithRequiredStructEnabled())

	// Use JSON tag name for field names in error messages.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	enLocale := en.New()
	uni := ut.New(enLocale, enLocale)
	trans, _ := uni.GetTranslator("en")
	_ = en_translations.RegisterDefaultTranslations(v, trans)

	return &structValidator{v: v, trans: trans}
}

// Struct validates s and returns a single error listing every failed field.
func (sv *structValidator) Struct(s any) error {
	err := sv.v.Struct(s)
	if err == nil {
		return nil
	}

	var ve govalidator.ValidationErrors
	if !errors.As(err, &ve) {
		return err
	}

	msgs := make([]string, 0, len(ve))
	for _, fe := range ve {
		msgs = append(msgs, fe.Translate(sv.trans))
	}
	sort.Strings(msgs)
	return fmt.Errorf("%w: %s", ErrInvalidDocument, strings.Join(msgs, "; "))
}

// ErrInvalidDocument marks a structural validation failure.
var ErrInvalidDocument = errors.New("invalid document")
