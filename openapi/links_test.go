package openapi

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitalvas/apicontract/components"
	"github.com/vitalvas/apicontract/schema"
)

type LinkedPet struct {
	ID    int64    `json:"id"`
	Name  string   `json:"name"`
	Tags  []string `json:"tags,omitempty"`
	Owner struct {
		Email string `json:"email"`
	} `json:"owner"`
}

// linkSpec registers getPet and createPet; createPet's 201 response carries
// the given link.
func linkSpec(l *Link) *Spec {
	spec := NewSpec(Info{Title: "Pets", Version: "1.0.0"})
	spec.Operation(http.MethodGet, "/pets/{id:int}").
		OperationID("getPet").
		QueryParam("fields", stringSchema, false).
		Response(http.StatusOK, LinkedPet{})
	spec.Operation(http.MethodPut, "/pets/{id:int}").
		OperationID("replacePet").
		Request(LinkedPet{}).
		Response(http.StatusOK, LinkedPet{})
	spec.Operation(http.MethodPost, "/owners/{owner}/pets").
		OperationID("createPet").
		HeaderParam("X-Tenant", stringSchema, false).
		Request(LinkedPet{}).
		Response(http.StatusCreated, LinkedPet{}).
		ResponseHeader(http.StatusCreated, "Location", &Header{Schema: stringSchema}).
		ResponseLink(http.StatusCreated, "Next", l)
	return spec
}

func linkError(t *testing.T, err error) *LinkError {
	t.Helper()
	require.Error(t, err)
	require.ErrorIs(t, err, ErrInvalidLink)

	var le *LinkError
	require.True(t, errors.As(err, &le))
	return le
}

func TestLinksCompatible(t *testing.T) {
	tests := []struct {
		name string
		link *Link
	}{
		{"response body pointer", &Link{OperationID: "getPet", Parameters: map[string]any{"id": "$response.body#/id"}}},
		{"qualified key", &Link{OperationID: "getPet", Parameters: map[string]any{"path.id": "$response.body#/id"}}},
		{"request body pointer", &Link{OperationID: "getPet", Parameters: map[string]any{"id": "$request.body#/id"}}},
		{"request path to query", &Link{OperationID: "getPet", Parameters: map[string]any{"id": "$response.body#/id", "fields": "$request.path.owner"}}},
		{"request header case-insensitive", &Link{OperationID: "getPet", Parameters: map[string]any{"id": "$response.body#/id", "fields": "$request.header.x-tenant"}}},
		{"response header", &Link{OperationID: "getPet", Parameters: map[string]any{"id": "$response.body#/id", "fields": "$response.header.location"}}},
		{"nested pointer", &Link{OperationID: "getPet", Parameters: map[string]any{"id": "$response.body#/id", "fields": "$response.body#/owner/email"}}},
		{"array index pointer", &Link{OperationID: "getPet", Parameters: map[string]any{"id": "$response.body#/id", "fields": "$response.body#/tags/0"}}},
		{"runtime value", &Link{OperationID: "getPet", Parameters: map[string]any{"id": "$response.body#/id", "fields": "$url"}}},
		{"constant", &Link{OperationID: "getPet", Parameters: map[string]any{"id": 7}}},
		{"operation ref", &Link{OperationRef: "#/paths/~1pets~1{id}/get", Parameters: map[string]any{"id": "$response.body#/id"}}},
		{"request body whole", &Link{OperationID: "replacePet", Parameters: map[string]any{"id": "$response.body#/id"}, RequestBody: "$response.body"}},
		{"no parameters", &Link{OperationID: "getPet"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := linkSpec(tt.link).Build()
			assert.NoError(t, err)
		})
	}
}

func TestLinksIncompatible(t *testing.T) {
	t.Run("names both operations and parameters", func(t *testing.T) {
		_, err := linkSpec(&Link{
			OperationID: "getPet",
			Parameters:  map[string]any{"id": "$response.body#/name"},
		}).Build()

		le := linkError(t, err)
		assert.Equal(t, "createPet", le.SourceOperation)
		assert.Equal(t, "$response.body#/name", le.SourceKey)
		assert.Equal(t, "getPet", le.TargetOperation)
		assert.Equal(t, "id", le.TargetParameter)
		assert.Equal(t, "incompatible schemas", le.Reason)
		assert.Equal(t, "link createPet[$response.body#/name] -> getPet[id]: incompatible schemas", le.Error())
	})

	tests := []struct {
		name   string
		link   *Link
		reason string
	}{
		{"unknown target", &Link{OperationID: "deletePet"}, `operationId "deletePet" not found`},
		{"no target", &Link{Parameters: map[string]any{"id": 1}}, "operationId or operationRef is required"},
		{"both targets", &Link{OperationID: "getPet", OperationRef: "#/paths/~1pets~1{id}/get"}, "operationId and operationRef are mutually exclusive"},
		{"remote operation ref", &Link{OperationRef: "https://example.com/openapi.json#/paths/~1pets/get"}, "must be local"},
		{"missing operation ref", &Link{OperationRef: "#/paths/~1pets~1{id}/delete"}, "not found"},
		{"unknown parameter", &Link{OperationID: "getPet", Parameters: map[string]any{"petId": "$response.body#/id"}}, `target parameter "petId" not found`},
		{"unknown qualified parameter", &Link{OperationID: "getPet", Parameters: map[string]any{"query.id": "$response.body#/id"}}, "target parameter query.id not found"},
		{"constant mismatch", &Link{OperationID: "getPet", Parameters: map[string]any{"id": "seven"}}, "constant does not validate"},
		{"missing pointer property", &Link{OperationID: "getPet", Parameters: map[string]any{"id": "$response.body#/age"}}, `property "age" not found`},
		{"pointer into primitive", &Link{OperationID: "getPet", Parameters: map[string]any{"id": "$response.body#/id/x"}}, "cannot select"},
		{"missing source parameter", &Link{OperationID: "getPet", Parameters: map[string]any{"id": "$request.query.id"}}, "source parameter query.id not found"},
		{"unsupported source", &Link{OperationID: "getPet", Parameters: map[string]any{"id": "$request.cookie.id"}}, "unsupported source"},
		{"malformed expression", &Link{OperationID: "getPet", Parameters: map[string]any{"id": "$response"}}, "malformed expression"},
		{"missing response header", &Link{OperationID: "getPet", Parameters: map[string]any{"id": "$response.header.X-Id"}}, `response header "X-Id" not found`},
		{"no target body", &Link{OperationID: "getPet", Parameters: map[string]any{"id": "$response.body#/id"}, RequestBody: "$response.body"}, "no JSON request body"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := linkSpec(tt.link).Build()
			le := linkError(t, err)
			assert.Contains(t, le.Reason, tt.reason)
		})
	}

	t.Run("ambiguous bare key", func(t *testing.T) {
		spec := linkSpec(&Link{OperationID: "search", Parameters: map[string]any{"q": "$request.path.owner"}})
		spec.Operation(http.MethodGet, "/search/{q}").
			OperationID("search").
			QueryParam("q", stringSchema, false)

		_, err := spec.Build()
		le := linkError(t, err)
		assert.Contains(t, le.Reason, "ambiguous")

		spec = linkSpec(&Link{OperationID: "search", Parameters: map[string]any{"query.q": "$request.path.owner"}})
		spec.Operation(http.MethodGet, "/search/{q}").
			OperationID("search").
			QueryParam("q", stringSchema, false)

		_, err = spec.Build()
		assert.NoError(t, err)
	})

	t.Run("every problem reported", func(t *testing.T) {
		_, err := linkSpec(&Link{
			OperationID: "getPet",
			Parameters:  map[string]any{"id": "$response.body#/name", "fields": 3},
		}).Build()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "getPet[id]")
		assert.Contains(t, err.Error(), "getPet[fields]")
	})

	t.Run("links are checked only after the rest builds", func(t *testing.T) {
		spec := linkSpec(&Link{OperationID: "nowhere"})
		spec.Operation("FETCH", "/x")

		_, err := spec.Build()
		require.ErrorIs(t, err, ErrInvalidPath)
		assert.NotErrorIs(t, err, ErrInvalidLink)
	})
}

func TestComponentLinks(t *testing.T) {
	spec := linkSpec(&Link{OperationID: "getPet"}).
		AddComponentLink("GetPet", &Link{OperationID: "getPet"}).
		AddComponentLink("Broken", &Link{OperationID: "missing"})

	_, err := spec.Build()
	le := linkError(t, err)
	assert.Equal(t, "#/components/links/Broken", le.SourceOperation)
	assert.Equal(t, "missing", le.TargetOperation)
}

func TestParseOperationRef(t *testing.T) {
	path, method, err := parseOperationRef("#/paths/~1users~1{id}/get")
	require.NoError(t, err)
	assert.Equal(t, "/users/{id}", path)
	assert.Equal(t, http.MethodGet, method)

	for _, ref := range []string{"/paths/~1users/get", "#/paths/~1users", "#/paths/~1users/get/extra", "#/paths/~1users/"} {
		_, _, err := parseOperationRef(ref)
		assert.Error(t, err, ref)
	}
}

func TestWalkPointer(t *testing.T) {
	pet := schema.Must(schema.NewObject(
		schema.Prop("id", int64Schema),
		schema.Prop("labels", schema.Must(schema.NewMap(stringSchema))),
	))
	reg, err := components.New().InsertSchema("Pet", pet)
	require.NoError(t, err)
	reg, err = reg.InsertSchema("Loop", schema.Must(schema.NewReference("Loop")))
	require.NoError(t, err)

	petRef := schema.Must(schema.NewReference("Pet"))
	list := schema.Must(schema.NewArray(petRef))
	extended := schema.Must(schema.NewAllOf(petRef, schema.Must(schema.NewObject(schema.Prop("a/b", stringSchema)))))
	either := schema.Must(schema.NewOneOf(petRef, stringSchema))

	tests := []struct {
		name string
		root schema.Node
		ptr  string
		want schema.Node
	}{
		{"empty pointer", pet, "", pet},
		{"through reference", petRef, "/id", int64Schema},
		{"array item", list, "/3/id", int64Schema},
		{"map value", petRef, "/labels/anything", stringSchema},
		{"allOf member", extended, "/id", int64Schema},
		{"escaped segment", extended, "/a~1b", stringSchema},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := walkPointer(reg, tt.root, tt.ptr)
			require.NoError(t, err)
			assert.Same(t, tt.want, got)
		})
	}

	failures := []struct {
		name string
		root schema.Node
		ptr  string
	}{
		{"relative pointer", pet, "id"},
		{"non numeric index", list, "/first"},
		{"oneOf", either, "/id"},
		{"unknown reference", schema.Must(schema.NewReference("Nope")), "/id"},
		{"reference loop", schema.Must(schema.NewReference("Loop")), "/id"},
	}
	for _, tt := range failures {
		t.Run(tt.name, func(t *testing.T) {
			_, err := walkPointer(reg, tt.root, tt.ptr)
			assert.Error(t, err)
		})
	}
}
