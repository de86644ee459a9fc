package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// ValidationError lists every problem found in a configuration.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return strings.Join(e.Problems, "; ")
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

// validatorInstance returns a shared validator that reports fields by their TOML names.
func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("toml"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// Validate checks everything except the storage section, which is only
// validated when an operation needs the provider (see StorageConfig.Validate).
func (c *Config) Validate() error {
	var problems []string
	problems = append(problems, structProblems(c)...)

	seen := make(map[string]bool)
	for _, r := range c.LocalRoots {
		if seen[r.URLPrefix] {
			problems = append(problems, fmt.Sprintf("local_roots: duplicate url_prefix %q", r.URLPrefix))
		}
		seen[r.URLPrefix] = true
	}

	if c.Credentials.Type == "age" && c.Credentials.AgeFile == "" {
		problems = append(problems, "credentials.age_file is required")
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

// Validate checks the provider configuration. Problems are reported together.
func (s StorageConfig) Validate() error {
	problems := structProblems(&s)

	needsBuckets := s.Provider != "filesystem" && s.Provider != "memory" && s.Provider != ""
	if needsBuckets {
		if s.PrivateBucket == "" {
			problems = append(problems, "private_bucket is required")
		}
		if s.PublicBucket == "" {
			problems = append(problems, "public_bucket is required")
		}
	}

	switch s.Provider {
	case "minio", "aliyun":
		if s.Endpoint == "" {
			problems = append(problems, "endpoint is required")
		}
		if s.AccessKeyID == "" {
			problems = append(problems, "access_key_id is required")
		}
	case "gcs":
		if s.GCSCredentialsFile != "" {
			if _, err := os.Stat(s.GCSCredentialsFile); err != nil {
				problems = append(problems, fmt.Sprintf("gcs_credentials_file: %v", err))
			}
		}
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

func structProblems(v any) []string {
	err := validatorInstance().Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []string{err.Error()}
	}

	problems := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		problems = append(problems, describe(fe))
	}
	return problems
}

// describe renders a field error as "<toml path> <problem>".
func describe(fe validator.FieldError) string {
	field := fe.Namespace()
	if _, rest, ok := strings.Cut(field, "."); ok {
		field = rest
	}

	switch fe.Tag() {
	case "required", "required_if", "required_unless":
		return field + " is required"
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s], got %q", field, fe.Param(), fe.Value())
	case "url":
		return field + " must be a URL"
	case "startswith":
		return fmt.Sprintf("%s must start with %q", field, fe.Param())
	case "endswith":
		return fmt.Sprintf("%s must end with %q", field, fe.Param())
	case "gte", "lte":
		return fmt.Sprintf("%s must be %s %s", field, fe.Tag(), fe.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}
