// Package openapi compiles explicitly registered operations into an OpenAPI
// v3.0.3 document and validates requests against it.
//
// Schemas are schema.Node values, either built directly or generated from Go
// types by reflection. Named struct types become component schemas referenced
// with $ref. Building a document fails on any construction error: duplicate
// components, unresolved references, malformed paths, duplicate operations
// and response links whose parameters do not fit their target.
//
// See: https://spec.openapis.org/oas/v3.0.3
//
// # Spec Builder
//
// Create a spec, register operations, and build the document:
//
//	spec := openapi.NewSpec(openapi.Info{Title: "Pet Store", Version: "1.0.0"})
//
//	spec.Operation(http.MethodGet, "/pets/{id:int}").
//	    OperationID("getPet").
//	    Summary("Get a pet").
//	    Tags("pets").
//	    Response(http.StatusOK, Pet{})
//
//	spec.Operation(http.MethodPost, "/pets").
//	    OperationID("createPet").
//	    Request(CreatePetInput{}).
//	    Response(http.StatusCreated, Pet{})
//
//	doc, err := spec.Build()
//	if err != nil {
//	    return err
//	}
//	data, err := doc.YAML()
//
// Calling Operation twice with the same method and path returns the same
// builder.
//
// # Path Templates
//
// Path variables use {name} or {name:macro}. Macros select the parameter
// schema:
//
//	{id:uuid}   -> type: string, format: uuid
//	{page:int}  -> type: integer, format: int64
//	{v:float}   -> type: number, format: double
//	{d:date}    -> type: string, format: date
//	{h:domain}  -> type: string, format: hostname
//
// Any other pattern yields a plain string parameter. Path parameters are
// always required.
//
// # Route Groups
//
// Use Group to apply shared metadata defaults to a set of operations:
//
//	pets := spec.Group().
//	    PathPrefix("/v1").
//	    Tags("pets").
//	    Security(openapi.SecurityRequirement{"basic": {}}).
//	    Response(http.StatusNotFound, ErrorResponse{})
//
//	pets.Operation(http.MethodGet, "/pets").Response(http.StatusOK, []Pet{})
//
// Override/merge semantics per field:
//
//   - Tags: append (group tags + operation tags combined)
//   - Security: replace (operation-level Security call overrides group value)
//   - Deprecated: one-way latch (group deprecation cannot be undone per-operation)
//   - Servers: append (group servers + operation servers combined)
//   - Parameters: append (group parameters + operation parameters combined)
//   - Responses: merge (operation overrides per status code)
//   - ExternalDocs: replace (operation-level ExternalDocs call overrides group value)
//
// # Components
//
// Register reusable objects in components. Registration failures surface
// from Build:
//
//	spec.AddComponentSchema("PetID", schema.Must(schema.NewInteger(schema.Format(format.Int64))))
//	spec.AddComponentResponse("NotFound", &openapi.Response{Description: "Not found"})
//	spec.AddSecurityScheme("bearerAuth", &openapi.SecurityScheme{Type: "http", Scheme: "bearer"})
//
// # Links
//
// Response links are checked while building. The target is found by
// operationId or by a local operationRef, each parameter key must name a
// target parameter, and each value must fit it:
//
//	spec.Operation(http.MethodPost, "/pets").
//	    OperationID("createPet").
//	    Response(http.StatusCreated, Pet{}).
//	    ResponseLink(http.StatusCreated, "GetPet", &openapi.Link{
//	        OperationID: "getPet",
//	        Parameters:  map[string]any{"path.id": "$response.body#/id"},
//	    })
//
// Runtime expressions ($request.path.x, $request.query.x, $request.header.x,
// $request.body#/ptr, $response.body#/ptr, $response.header.x) are resolved
// to schemas and compared with the compatibility checker. Constant values are
// validated against the target schema.
//
// # Struct Tags
//
// Use the "openapi" struct tag to add constraints to generated schemas:
//
//	type CreatePetInput struct {
//	    Name string `json:"name" openapi:"description=Pet name,minLength=1,maxLength=100"`
//	    Kind string `json:"kind" openapi:"enum=cat|dog"`
//	    Age  int    `json:"age,omitempty" openapi:"minimum=0,maximum=50"`
//	}
//
// Supported tag keys: description, example, format, minimum, maximum,
// minLength, maxLength, enum (pipe-separated), uniqueItems, nullable.
// Fields without omitempty are required.
//
// # Serving and Validating
//
// Handle serves the compiled document as JSON and YAML:
//
//	mux := http.NewServeMux()
//	spec.Handle(mux, "/docs", nil)
//	// /docs/openapi.json, /docs/openapi.yaml
//
// Middleware validates requests against the document before they reach the
// application and answers 400 with {"errors": [...]} on failure:
//
//	validator, err := spec.Middleware(&openapi.MiddlewareConfig{MaxBodySize: 1 << 16})
//	if err != nil {
//	    return err
//	}
//	http.ListenAndServe(":8080", validator(mux))
//
// # Loading Documents
//
// ParseDocument loads the component schemas of an existing OpenAPI 3.0.x
// document, in YAML or JSON, into a registry usable by the validator and
// the compatibility checker.
package openapi
