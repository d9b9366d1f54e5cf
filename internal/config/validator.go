package config

import (
	"errors"
	"fmt"
	"net/url"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

func newValidator() *validator.Validate {
	v := validator.New()

	// Report koanf keys so messages match what operators write in YAML/env.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("koanf"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	if err := v.RegisterValidation("http_origin", validateHTTPOrigin); err != nil {
		panic(fmt.Sprintf("register http_origin validation: %v", err))
	}

	return v
}

// validateHTTPOrigin accepts http(s) URLs with a host and no query or fragment.
func validateHTTPOrigin(fl validator.FieldLevel) bool {
	u, err := url.Parse(fl.Field().String())
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	return u.Host != "" && u.RawQuery == "" && u.Fragment == ""
}

// Validate checks c and returns the first violation wrapped in ErrInvalidConfig.
func Validate(c *Config) error {
	if err := newValidator().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			first := verrs[0]
			if first.Tag() == "required" {
				return fmt.Errorf("%w: %s must not be empty", ErrInvalidConfig, first.Field())
			}
			return fmt.Errorf("%w: %s failed %q (value %v)", ErrInvalidConfig, first.Field(), first.Tag(), first.Value())
		}
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}
