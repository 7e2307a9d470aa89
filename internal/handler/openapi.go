package handler

import (
	"context"
	_ "embed"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/labstack/echo/v4"

	"github.com/deppfellow/layered-api/internal/errs"
	"github.com/deppfellow/layered-api/internal/validation"
)

//go:embed static/docs.html
var docsPage []byte

// OpenAPIHandler serves the API description generated from the routes and
// the docs UI that renders it.
type OpenAPIHandler struct {
	document []byte
}

// NewOpenAPIHandler renders the document once; routes are frozen by then.
func NewOpenAPIHandler(title, version string, routes []Route) (*OpenAPIHandler, error) {
	doc, err := BuildOpenAPI(title, version, routes)
	if err != nil {
		return nil, err
	}
	data, err := doc.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("marshalling openapi document: %w", err)
	}
	return &OpenAPIHandler{document: data}, nil
}

func (h *OpenAPIHandler) ServeDocument(c echo.Context) error {
	return c.Blob(http.StatusOK, echo.MIMEApplicationJSON, h.document)
}

// ServeUI serves the docs page. Caching is disabled so doc updates show up
// immediately.
func (h *OpenAPIHandler) ServeUI(c echo.Context) error {
	c.Response().Header().Set("Cache-Control", "no-cache")
	return c.HTMLBlob(http.StatusOK, docsPage)
}

// BuildOpenAPI describes routes as an OpenAPI 3 document and validates it.
func BuildOpenAPI(title, version string, routes []Route) (*openapi3.T, error) {
	errSchema := errorSchema()
	doc := &openapi3.T{
		OpenAPI: "3.0.3",
		Info:    &openapi3.Info{Title: title, Version: version},
		Paths:   openapi3.NewPaths(),
		Components: &openapi3.Components{
			Schemas: openapi3.Schemas{
				"Error": openapi3.NewSchemaRef("", errSchema),
			},
		},
	}

	for _, r := range routes {
		path, params := openAPIPath(r.Path)
		item := doc.Paths.Value(path)
		if item == nil {
			item = &openapi3.PathItem{}
			doc.Paths.Set(path, item)
		}
		item.SetOperation(r.Method, operation(r, params, errSchema))
	}

	if err := doc.Validate(context.Background()); err != nil {
		return nil, fmt.Errorf("invalid openapi document: %w", err)
	}
	return doc, nil
}

// openAPIPath rewrites /users/:id to /users/{id} and returns the parameter
// names.
func openAPIPath(path string) (string, []string) {
	segments := strings.Split(path, "/")
	var params []string
	for i, s := range segments {
		if name, ok := strings.CutPrefix(s, ":"); ok {
			segments[i] = "{" + name + "}"
			params = append(params, name)
		}
	}
	return strings.Join(segments, "/"), params
}

func operation(r Route, pathParams []string, errSchema *openapi3.Schema) *openapi3.Operation {
	op := openapi3.NewOperation()
	op.OperationID = r.Endpoint.Name
	op.Responses = openapi3.NewResponses()

	isParam := make(map[string]bool, len(pathParams))
	for _, name := range pathParams {
		isParam[name] = true
		p := openapi3.NewPathParameter(name).WithSchema(openapi3.NewStringSchema())
		if f, ok := r.Endpoint.Schema.Fields[name]; ok {
			p.Schema = openapi3.NewSchemaRef("", fieldSchema(f))
		}
		op.AddParameter(p)
	}

	noExtra := false
	body := openapi3.NewObjectSchema()
	var required []string
	names := make([]string, 0, len(r.Endpoint.Schema.Fields))
	for name := range r.Endpoint.Schema.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if isParam[name] {
			continue
		}
		f := r.Endpoint.Schema.Fields[name]
		body.WithPropertyRef(name, openapi3.NewSchemaRef("", fieldSchema(f)))
		if f.Required() {
			required = append(required, name)
		}
	}
	if len(body.Properties) > 0 {
		body.Required = required
		body.AdditionalProperties = openapi3.AdditionalProperties{Has: &noExtra}
		op.RequestBody = &openapi3.RequestBodyRef{
			Value: openapi3.NewRequestBody().WithRequired(len(required) > 0).WithJSONSchema(body),
		}
	}

	status := r.Endpoint.successStatus()
	success := openapi3.NewResponse().WithDescription(http.StatusText(status))
	if status != http.StatusNoContent {
		success.WithContent(openapi3.NewContentWithJSONSchema(openapi3.NewObjectSchema()))
	}
	op.AddResponse(status, success)

	errResponse := openapi3.NewResponse().
		WithDescription("Error descriptor").
		WithJSONSchemaRef(openapi3.NewSchemaRef("#/components/schemas/Error", errSchema))
	op.Responses.Set("default", &openapi3.ResponseRef{Value: errResponse})

	return op
}

// fieldSchema maps a validation field onto a JSON schema. Only the rules
// with a direct JSON schema equivalent are carried over.
func fieldSchema(f validation.Field) *openapi3.Schema {
	var s *openapi3.Schema
	switch f.Type {
	case validation.TypeString:
		s = openapi3.NewStringSchema()
	case validation.TypeNumber:
		s = openapi3.NewFloat64Schema()
	case validation.TypeInteger:
		s = openapi3.NewIntegerSchema()
	case validation.TypeBoolean:
		s = openapi3.NewBoolSchema()
	case validation.TypeObject:
		s = openapi3.NewObjectSchema()
	case validation.TypeArray:
		s = openapi3.NewArraySchema()
		s.Items = openapi3.NewSchemaRef("", &openapi3.Schema{})
	default:
		s = &openapi3.Schema{}
	}

	for _, rule := range strings.Split(f.Rules, ",") {
		tag, param, _ := strings.Cut(strings.TrimSpace(rule), "=")
		n, numErr := strconv.ParseUint(param, 10, 64)
		switch {
		case tag == "email":
			s.Format = "email"
		case tag == "uuid" || tag == "uuid4":
			s.Format = "uuid"
		case tag == "url":
			s.Format = "uri"
		case tag == "base64":
			s.Format = "byte"
		case tag == "min" && numErr == nil && f.Type == validation.TypeString:
			s.MinLength = n
		case tag == "max" && numErr == nil && f.Type == validation.TypeString:
			s.MaxLength = &n
		}
	}
	return s
}

func errorSchema() *openapi3.Schema {
	kinds := make([]any, 0, len(errs.Kinds))
	for _, k := range errs.Kinds {
		kinds = append(kinds, string(k))
	}
	s := openapi3.NewObjectSchema().
		WithProperty("kind", openapi3.NewStringSchema().WithEnum(kinds...)).
		WithProperty("message", openapi3.NewStringSchema()).
		WithProperty("details", openapi3.NewObjectSchema().WithAdditionalProperties(openapi3.NewStringSchema()))
	s.Required = []string{"kind", "message"}
	return s
}
