package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/alem-hub/school-results/internal/application/command"
	"github.com/alem-hub/school-results/internal/domain/result"
	"github.com/alem-hub/school-results/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// REQUEST BODIES
// ══════════════════════════════════════════════════════════════════════════════

type subjectRequest struct {
	Name  string   `json:"name" validate:"required,max=100"`
	Score *float64 `json:"score" validate:"required,gte=0,lte=100"`
}

type createResultRequest struct {
	StudentID        string           `json:"student_id" validate:"required,max=64"`
	StudentName      string           `json:"student_name" validate:"required,max=200"`
	AdmissionNumber  string           `json:"admission_number" validate:"omitempty,max=64"`
	Class            string           `json:"class" validate:"required,max=64"`
	Term             string           `json:"term" validate:"required,oneof=First Second Third"`
	Session          string           `json:"session" validate:"required,session"`
	ResultType       string           `json:"result_type" validate:"required,oneof=Midterm Examination"`
	Subjects         []subjectRequest `json:"subjects" validate:"required,min=1,max=30,dive"`
	TeacherComment   string           `json:"teacher_comment" validate:"max=1000"`
	PrincipalComment string           `json:"principal_comment" validate:"max=1000"`
	IdempotencyKey   string           `json:"idempotency_key" validate:"omitempty,max=128"`
}

func (req createResultRequest) toCommand() command.CreateResultCommand {
	return command.CreateResultCommand{
		StudentID:        req.StudentID,
		StudentName:      req.StudentName,
		AdmissionNumber:  req.AdmissionNumber,
		Class:            req.Class,
		Term:             result.Term(req.Term),
		Session:          result.Session(req.Session),
		Type:             result.Type(req.ResultType),
		Subjects:         toSubjectScores(req.Subjects),
		TeacherComment:   req.TeacherComment,
		PrincipalComment: req.PrincipalComment,
		IdempotencyKey:   req.IdempotencyKey,
	}
}

// updateResultRequest is a patch; absent fields are left unchanged.
type updateResultRequest struct {
	Subjects         []subjectRequest `json:"subjects" validate:"omitempty,max=30,dive"`
	TeacherComment   *string          `json:"teacher_comment" validate:"omitempty,max=1000"`
	PrincipalComment *string          `json:"principal_comment" validate:"omitempty,max=1000"`
	Version          int              `json:"version" validate:"gte=0"`
}

func (req updateResultRequest) toCommand(id string) command.UpdateResultCommand {
	cmd := command.UpdateResultCommand{
		ResultID:         id,
		TeacherComment:   req.TeacherComment,
		PrincipalComment: req.PrincipalComment,
		ExpectedVersion:  req.Version,
	}
	if req.Subjects != nil {
		cmd.Subjects = toSubjectScores(req.Subjects)
	}
	return cmd
}

type rerankRequest struct {
	Term    string `json:"term" validate:"required,oneof=First Second Third"`
	Session string `json:"session" validate:"required,session"`
}

type issueKeyRequest struct {
	Name       string   `json:"name" validate:"required,max=200"`
	Role       string   `json:"role" validate:"required,oneof=admin teacher parent"`
	StudentIDs []string `json:"student_ids" validate:"omitempty,max=50,dive,required,max=64"`
}

// issueKeyResponse carries the plaintext key. It is shown exactly once.
type issueKeyResponse struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Role       string   `json:"role"`
	StudentIDs []string `json:"student_ids,omitempty"`
	APIKey     string   `json:"api_key"`
}

func toSubjectScores(in []subjectRequest) []result.SubjectScore {
	out := make([]result.SubjectScore, len(in))
	for i, s := range in {
		out[i] = result.SubjectScore{Name: s.Name}
		if s.Score != nil {
			out[i].Score = *s.Score
		}
	}
	return out
}

// ══════════════════════════════════════════════════════════════════════════════
// BINDING & VALIDATION
// ══════════════════════════════════════════════════════════════════════════════

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report JSON field names instead of Go field names.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	if err := registerValidations(v, customValidations); err != nil {
		panic(fmt.Sprintf("http: %v", err))
	}
	return v
}

// customValidations are the tags request DTOs use beyond the built-ins.
var customValidations = map[string]validator.Func{
	"session": func(fl validator.FieldLevel) bool {
		return result.Session(fl.Field().String()).IsValid()
	},
}

func registerValidations(v *validator.Validate, funcs map[string]validator.Func) error {
	for tag, fn := range funcs {
		if err := v.RegisterValidation(tag, fn); err != nil {
			return fmt.Errorf("register %q validation: %w", tag, err)
		}
	}
	return nil
}

// errBodyTooLarge is mapped to 413.
var errBodyTooLarge = errors.New("request body too large")

// decodeJSON reads a single JSON object into dst and validates it. Decoding
// and validation failures come back as shared validation errors.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		var typeErr *json.UnmarshalTypeError
		switch {
		case errors.As(err, &maxErr):
			return errBodyTooLarge
		case errors.Is(err, io.EOF):
			return shared.NewValidationError("http", "Bind", "body", "request body is required")
		case errors.As(err, &typeErr):
			return shared.NewValidationError("http", "Bind", typeErr.Field, fmt.Sprintf("must be a %s", typeErr.Type))
		case strings.HasPrefix(err.Error(), "json: unknown field "):
			field := strings.Trim(strings.TrimPrefix(err.Error(), "json: unknown field "), `"`)
			return shared.NewValidationError("http", "Bind", field, "unknown field")
		default:
			return shared.NewValidationError("http", "Bind", "body", "malformed JSON")
		}
	}
	if dec.More() {
		return shared.NewValidationError("http", "Bind", "body", "body must contain a single JSON object")
	}

	return validateStruct(dst)
}

// validateStruct runs the validator and folds every field error into one
// validation error naming the first offending field.
func validateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return shared.NewValidationError("http", "Validate", "body", err.Error())
	}

	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, fieldPath(fe)+": "+fieldMessage(fe))
	}
	return shared.NewValidationError("http", "Validate", fieldPath(fieldErrs[0]), strings.Join(msgs, "; "))
}

// fieldPath strips the root struct name from the namespace,
// e.g. "subjects[0].score".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return "must be one of " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "session":
		return "must look like 2024/2025"
	case "min":
		if fe.Kind() == reflect.Slice {
			return "must have at least " + fe.Param() + " items"
		}
		return "must be at least " + fe.Param() + " characters"
	case "max":
		if fe.Kind() == reflect.Slice {
			return "must have at most " + fe.Param() + " items"
		}
		return "must be at most " + fe.Param() + " characters"
	case "gte":
		return "must be at least " + fe.Param()
	case "lte":
		return "must be at most " + fe.Param()
	default:
		return "failed " + fe.Tag() + " check"
	}
}
