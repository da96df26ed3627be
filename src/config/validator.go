package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Validator checks a configuration against the struct tags and the custom
// rules below.
type Validator struct {
	validate *validator.Validate
}

// NewValidator creates a validator with skald's custom rules registered.
func NewValidator() *Validator {
	v := validator.New()

	_ = v.RegisterValidation("provider", validateProvider)
	_ = v.RegisterValidation("decision", validateDecision)
	_ = v.RegisterValidation("loglevel", validateLogLevel)
	_ = v.RegisterValidation("logformat", validateLogFormat)

	return &Validator{validate: v}
}

// Validate returns an error describing every rule the config violates.
func (v *Validator) Validate(config *Config) error {
	if config == nil {
		return fmt.Errorf("config is nil")
	}

	err := v.validate.Struct(config)
	if err == nil {
		return nil
	}

	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}

	msgs := make([]string, 0, len(validationErrors))
	for _, fieldErr := range validationErrors {
		msgs = append(msgs, describeFieldError(fieldErr))
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
}

func describeFieldError(e validator.FieldError) string {
	field := e.Namespace()
	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "provider":
		return fmt.Sprintf("%s must be one of: %s", field, strings.Join(knownProviders, ", "))
	case "decision":
		return fmt.Sprintf("%s must be one of: allow, prompt, deny", field)
	case "loglevel":
		return fmt.Sprintf("%s must be one of: debug, info, warn, error", field)
	case "logformat":
		return fmt.Sprintf("%s must be one of: text, json", field)
	case "url":
		return fmt.Sprintf("%s must be a valid URL", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, e.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, e.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", field, e.Tag())
	}
}

var knownProviders = []string{"openrouter", "openai", "anthropic", "google"}

func validateProvider(fl validator.FieldLevel) bool {
	return contains(knownProviders, fl.Field().String())
}

func validateDecision(fl validator.FieldLevel) bool {
	return contains([]string{"allow", "prompt", "deny"}, fl.Field().String())
}

func validateLogLevel(fl validator.FieldLevel) bool {
	return contains([]string{"debug", "info", "warn", "warning", "error"}, fl.Field().String())
}

func validateLogFormat(fl validator.FieldLevel) bool {
	return contains([]string{"text", "json"}, fl.Field().String())
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
