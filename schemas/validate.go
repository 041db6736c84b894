package schemas

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"k8s.io/apimachinery/pkg/api/resource"
	"k8s.io/apimachinery/pkg/util/validation"
)

// DomainPlaceholder is substituted with a route subdomain to build a host.
const DomainPlaceholder = "%s"

// EditorPortName names the port the workspace role adds for the editor.
const EditorPortName = "editor"

// FieldError is a single validation failure at a document path such as
// "components[1].ports[0].number".
type FieldError struct {
	Path    string
	Message string
}

func (e FieldError) String() string {
	if e.Path == "" {
		return e.Message
	}
	return e.Path + ": " + e.Message
}

// ValidationError lists every problem found in a workspace document.
type ValidationError struct {
	Errors []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Errors))
	for _, fe := range e.Errors {
		parts = append(parts, fe.String())
	}
	return "invalid workspace: " + strings.Join(parts, "; ")
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	must(v.RegisterValidation("k8sname", func(fl validator.FieldLevel) bool {
		return len(validation.IsDNS1123Label(fl.Field().String())) == 0
	}))
	must(v.RegisterValidation("subdomain", func(fl validator.FieldLevel) bool {
		return len(validation.IsDNS1123Subdomain(fl.Field().String())) == 0
	}))
	must(v.RegisterValidation("portname", func(fl validator.FieldLevel) bool {
		return len(validation.IsValidPortName(fl.Field().String())) == 0
	}))
	must(v.RegisterValidation("envname", func(fl validator.FieldLevel) bool {
		return len(validation.IsEnvVarName(fl.Field().String())) == 0
	}))
	must(v.RegisterValidation("filekey", func(fl validator.FieldLevel) bool {
		return len(validation.IsConfigMapKey(fl.Field().String())) == 0
	}))
	must(v.RegisterValidation("quantity", func(fl validator.FieldLevel) bool {
		_, err := resource.ParseQuantity(fl.Field().String())
		return err == nil
	}))
	must(v.RegisterValidation("domaintemplate", func(fl validator.FieldLevel) bool {
		return strings.Count(fl.Field().String(), DomainPlaceholder) == 1
	}))
	return v
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}

// Validate checks a defaulted workspace document.
func Validate(ws *WorkspaceSpec) error {
	var errs []FieldError

	if err := validate.Struct(ws); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		for _, fe := range verrs {
			errs = append(errs, FieldError{Path: fieldPath(fe), Message: describe(fe)})
		}
	}

	seen := make(map[string]int, len(ws.Components))
	for i, c := range ws.Components {
		if first, ok := seen[c.Name]; ok {
			errs = append(errs, FieldError{
				Path:    fmt.Sprintf("components[%d].name", i),
				Message: fmt.Sprintf("duplicate component name %q (first declared at components[%d])", c.Name, first),
			})
			continue
		}
		seen[c.Name] = i
	}

	if ws.Workspace != nil {
		for i, p := range ws.Workspace.Ports {
			if p.Name == EditorPortName {
				errs = append(errs, FieldError{
					Path:    fmt.Sprintf("workspace.ports[%d].name", i),
					Message: fmt.Sprintf("%q is reserved for the editor port", p.Name),
				})
			}
		}
	}

	if len(errs) > 0 {
		return &ValidationError{Errors: errs}
	}
	return nil
}

// fieldPath turns "WorkspaceSpec.workspace.ComponentSpec.ports[0].name" into
// "workspace.ports[0].name".
func fieldPath(fe validator.FieldError) string {
	segments := strings.Split(fe.Namespace(), ".")
	out := segments[:0]
	for i, s := range segments {
		if i == 0 || s == "ComponentSpec" {
			continue
		}
		out = append(out, s)
	}
	return strings.Join(out, ".")
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "k8sname":
		return fmt.Sprintf("%q must be a lowercase RFC 1123 label", fe.Value())
	case "subdomain":
		return fmt.Sprintf("%q must be a lowercase RFC 1123 subdomain", fe.Value())
	case "portname":
		return fmt.Sprintf("%q must be an IANA service name of at most 15 characters", fe.Value())
	case "envname":
		return fmt.Sprintf("%q is not a valid environment variable name", fe.Value())
	case "filekey":
		return fmt.Sprintf("%q is not a valid file key", fe.Value())
	case "quantity":
		return fmt.Sprintf("%q is not a valid quantity", fe.Value())
	case "domaintemplate":
		return fmt.Sprintf("must contain exactly one %q placeholder", DomainPlaceholder)
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	case "startswith":
		return fmt.Sprintf("must start with %q", fe.Param())
	case "unique":
		return fmt.Sprintf("%s must be unique", strings.ToLower(fe.Param()))
	default:
		return fmt.Sprintf("failed %q validation", fe.Tag())
	}
}
