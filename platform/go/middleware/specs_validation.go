package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	oapimiddleware "github.com/oapi-codegen/nethttp-middleware"

	platformauth "github.com/harmony-hq/harmony/platform/go/auth"
	"github.com/harmony-hq/harmony/platform/go/httpx"
)

// LoadContract parses and validates an embedded OpenAPI document.
func LoadContract(ctx context.Context, data []byte) (*openapi3.T, error) {
	loader := openapi3.NewLoader()
	loader.Context = ctx

	spec, err := loader.LoadFromData(data)
	if err != nil {
		return nil, fmt.Errorf("load openapi contract: %w", err)
	}
	if err := spec.Validate(ctx); err != nil {
		return nil, fmt.Errorf("validate openapi contract: %w", err)
	}
	return spec, nil
}

// ContractValidator rejects requests that do not match spec. Failures are reported as problem+json.
func ContractValidator(spec *openapi3.T) func(http.Handler) http.Handler {
	return oapimiddleware.OapiRequestValidatorWithOptions(spec, &oapimiddleware.Options{
		Options: openapi3filter.Options{
			AuthenticationFunc: ValidateAuthenticationViaSwagger,
		},
		ErrorHandler: writeContractProblem,
	})
}

func writeContractProblem(w http.ResponseWriter, message string, statusCode int) {
	problem := httpx.Problem{
		Type:   httpx.ProblemTypeValidation,
		Title:  "Request does not match contract",
		Status: statusCode,
		Detail: message,
	}
	if statusCode == http.StatusUnauthorized {
		problem.Type = httpx.ProblemTypeUnauthorized
		problem.Title = "Unauthorized"
	}
	if statusCode == http.StatusNotFound {
		problem.Type = httpx.ProblemTypeNotFound
		problem.Title = "Not found"
	}
	httpx.WriteProblem(w, problem)
}

// ValidateAuthenticationViaSwagger satisfies operations that declare bearerAuth in the contract.
// The JWT middleware has already verified the token; here we only require that it produced credentials.
func ValidateAuthenticationViaSwagger(ctx context.Context, input *openapi3filter.AuthenticationInput) error {
	if input == nil || input.SecuritySchemeName != "bearerAuth" {
		return nil
	}
	r := input.RequestValidationInput.Request
	if r == nil {
		return errors.New("no request in validation input")
	}
	creds, ok := platformauth.UserFromContext(r.Context())
	if !ok || creds == nil {
		return errors.New("missing or invalid bearer token")
	}
	return nil
}
