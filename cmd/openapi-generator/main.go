// Package main provides a command-line tool for generating the EcoQuest
// OpenAPI specification. Paths come from the scenario registry, schemas
// from reflecting over the wire types the handlers encode.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/laredonunes/ecoquest-api/engine"
	"github.com/laredonunes/ecoquest-api/httpapi"
	"github.com/laredonunes/ecoquest-api/scenario"
	"gopkg.in/yaml.v3"
)

func main() {
	openapiOut := flag.String("o", "./specs/openapi.v3.yaml", "Output path for OpenAPI spec")
	scenarioDir := flag.String("scenarios", "", "Directory with extra scenario packs to document")
	flag.Parse()

	log.Printf("EcoQuest OpenAPI Generator")
	log.Printf("  Output: %s", *openapiOut)

	registry := scenario.NewRegistry(scenario.Builtin()...)
	if *scenarioDir != "" {
		packs, err := scenario.LoadDir(*scenarioDir)
		if err != nil {
			log.Fatalf("Failed to load scenario packs: %v", err)
		}
		for _, sc := range packs {
			registry.Add(sc)
		}
	}

	log.Printf("Documenting %d scenarios", registry.Len())
	for _, sc := range registry.List() {
		log.Printf("  - %s (%s)", sc.ID, sc.Title)
	}

	openapiDir := filepath.Dir(*openapiOut)
	if err := os.MkdirAll(openapiDir, 0755); err != nil {
		log.Fatalf("Failed to create output directory: %v", err)
	}

	openapi := generateOpenAPISpec(registry)
	if err := writeYAMLFile(*openapiOut, openapi); err != nil {
		log.Fatalf("Failed to write OpenAPI spec: %v", err)
	}

	log.Printf("Generated OpenAPI spec: %s", *openapiOut)
}

// OpenAPIDocument represents the complete OpenAPI 3.0 specification.
type OpenAPIDocument struct {
	OpenAPI    string              `yaml:"openapi"`
	Info       InfoObject          `yaml:"info"`
	Servers    []ServerObject      `yaml:"servers"`
	Paths      map[string]PathItem `yaml:"paths"`
	Components ComponentsObject    `yaml:"components"`
	Tags       []TagObject         `yaml:"tags"`
}

// InfoObject contains API metadata.
type InfoObject struct {
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
	Version     string `yaml:"version"`
}

// ServerObject defines an API server.
type ServerObject struct {
	URL         string `yaml:"url"`
	Description string `yaml:"description"`
}

// ComponentsObject holds reusable objects.
type ComponentsObject struct {
	Schemas map[string]any `yaml:"schemas"`
}

// TagObject defines an API tag.
type TagObject struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

// PathItem describes operations available on a path.
type PathItem struct {
	Get  *Operation `yaml:"get,omitempty"`
	Post *Operation `yaml:"post,omitempty"`
}

// Operation describes a single API operation.
type Operation struct {
	Summary     string              `yaml:"summary"`
	Description string              `yaml:"description,omitempty"`
	Tags        []string            `yaml:"tags,omitempty"`
	Parameters  []Parameter         `yaml:"parameters,omitempty"`
	RequestBody *RequestBody        `yaml:"requestBody,omitempty"`
	Responses   map[string]Response `yaml:"responses"`
}

// Parameter describes an operation parameter.
type Parameter struct {
	Name        string    `yaml:"name"`
	In          string    `yaml:"in"`
	Required    bool      `yaml:"required,omitempty"`
	Description string    `yaml:"description,omitempty"`
	Schema      SchemaRef `yaml:"schema"`
}

// RequestBody describes an operation request body.
type RequestBody struct {
	Required bool                 `yaml:"required,omitempty"`
	Content  map[string]MediaType `yaml:"content"`
}

// Response describes an operation response.
type Response struct {
	Description string               `yaml:"description"`
	Content     map[string]MediaType `yaml:"content,omitempty"`
}

// MediaType describes a media type and schema.
type MediaType struct {
	Schema SchemaRef `yaml:"schema"`
}

// SchemaRef references a schema.
type SchemaRef struct {
	Ref   string     `yaml:"$ref,omitempty"`
	Type  string     `yaml:"type,omitempty"`
	Items *SchemaRef `yaml:"items,omitempty"`
}

// Docs mirrors the documentation payload GET / serves.
type Docs struct {
	Nome            string                   `json:"nome"`
	Versao          string                   `json:"versao"`
	Descricao       string                   `json:"descricao"`
	Cenarios        map[string]ScenarioEntry `json:"cenarios"`
	EndpointsGerais map[string]string        `json:"endpoints_gerais"`
	ExemploUso      map[string]any           `json:"exemplo_uso"`
}

// ScenarioEntry mirrors one catalog entry of the docs and list payloads.
type ScenarioEntry struct {
	ID        string `json:"id,omitempty"`
	Titulo    string `json:"titulo"`
	Descricao string `json:"descricao"`
	Icon      string `json:"icon"`
	Endpoint  string `json:"endpoint"`
}

// Health mirrors the payload GET /health serves.
type Health struct {
	Status              string `json:"status"`
	Timestamp           string `json:"timestamp"`
	GroqAPIConfigured   bool   `json:"groq_api_configured"`
	CenariosDisponiveis int    `json:"cenarios_disponiveis"`
}

// ScenarioList mirrors the payload GET /api/cenarios serves.
type ScenarioList struct {
	Status   string          `json:"status"`
	Total    int             `json:"total"`
	Cenarios []ScenarioEntry `json:"cenarios"`
}

// ErrorEnvelope mirrors the envelope every failed request carries.
type ErrorEnvelope struct {
	Status       string   `json:"status"`
	Error        string   `json:"error"`
	Code         string   `json:"code"`
	ValidActions []string `json:"valid_actions,omitempty"`
	RetryAfter   int      `json:"retry_after,omitempty"`
	Endpoints    []string `json:"endpoints_disponiveis,omitempty"`
}

// TurnRequest mirrors the body POST /api/{cenario} accepts.
type TurnRequest struct {
	Action         string          `json:"action"`
	PlayerDecision string          `json:"player_decision,omitempty"`
	GameState      *engine.Session `json:"game_state,omitempty"`
}

// generateOpenAPISpec generates an OpenAPI 3.0 specification from the
// scenario registry.
func generateOpenAPISpec(registry *scenario.Registry) OpenAPIDocument {
	return OpenAPIDocument{
		OpenAPI: "3.0.3",
		Info: InfoObject{
			Title:       "EcoQuest API",
			Description: "API de RPG investigativo sobre crimes ambientais - narrativa gerada por IA com sessões carregadas pelo cliente",
			Version:     httpapi.Version,
		},
		Servers: []ServerObject{
			{URL: "http://localhost:8080", Description: "Development server"},
		},
		Paths: buildPaths(registry),
		Components: ComponentsObject{Schemas: buildSchemas(
			engine.Turn{},
			TurnRequest{},
			Docs{},
			Health{},
			ScenarioList{},
			ErrorEnvelope{},
		)},
		Tags: []TagObject{
			{Name: "descoberta", Description: "Documentação, saúde e catálogo de cenários"},
			{Name: "turnos", Description: "Turnos de jogo dos cenários investigativos"},
			{Name: "observabilidade", Description: "Métricas Prometheus"},
		},
	}
}

// buildPaths creates the OpenAPI paths: the fixed discovery endpoints
// plus one turn endpoint per registered scenario.
func buildPaths(registry *scenario.Registry) map[string]PathItem {
	errRef := ref("ErrorEnvelope")

	paths := map[string]PathItem{
		"/": {
			Get: &Operation{
				Summary: "Documentação da API",
				Tags:    []string{"descoberta"},
				Responses: map[string]Response{
					"200": jsonResponse("Documentação e catálogo de cenários", ref("Docs")),
				},
			},
		},
		"/health": {
			Get: &Operation{
				Summary: "Health check",
				Tags:    []string{"descoberta"},
				Responses: map[string]Response{
					"200": jsonResponse("Estado do serviço", ref("Health")),
					"405": jsonResponse("Método não permitido", errRef),
				},
			},
		},
		"/api/cenarios": {
			Get: &Operation{
				Summary: "Lista de cenários disponíveis",
				Tags:    []string{"descoberta"},
				Responses: map[string]Response{
					"200": jsonResponse("Cenários registrados", ref("ScenarioList")),
					"405": jsonResponse("Método não permitido", errRef),
				},
			},
		},
		"/metrics": {
			Get: &Operation{
				Summary: "Métricas Prometheus",
				Tags:    []string{"observabilidade"},
				Responses: map[string]Response{
					"200": {
						Description: "Métricas em formato texto",
						Content: map[string]MediaType{
							"text/plain": {Schema: SchemaRef{Type: "string"}},
						},
					},
				},
			},
		},
	}

	for _, sc := range registry.List() {
		paths["/api/"+sc.ID] = PathItem{
			Post: &Operation{
				Summary:     sc.Title,
				Description: sc.Description,
				Tags:        []string{"turnos"},
				Parameters: []Parameter{
					{
						Name:        "X-Player-ID",
						In:          "header",
						Description: "Identidade do jogador para o controle de limites; sem ele vale o endereço do cliente",
						Schema:      SchemaRef{Type: "string"},
					},
				},
				RequestBody: &RequestBody{
					Required: true,
					Content: map[string]MediaType{
						"application/json": {Schema: ref("TurnRequest")},
					},
				},
				Responses: map[string]Response{
					"200": jsonResponse("Turno narrado com o estado atualizado", ref("Turn")),
					"400": jsonResponse("Requisição inválida", errRef),
					"404": jsonResponse("Cenário não encontrado", errRef),
					"405": jsonResponse("Método não permitido", errRef),
					"429": jsonResponse("Limite de requisições do jogador atingido", errRef),
					"500": jsonResponse("Erro interno ou falha do provedor de narrativa", errRef),
				},
			},
		}
	}

	return paths
}

func ref(name string) SchemaRef {
	return SchemaRef{Ref: "#/components/schemas/" + name}
}

func jsonResponse(description string, schema SchemaRef) Response {
	return Response{
		Description: description,
		Content: map[string]MediaType{
			"application/json": {Schema: schema},
		},
	}
}

// buildSchemas generates JSON schemas for the given wire types.
func buildSchemas(types ...any) map[string]any {
	schemas := make(map[string]any)
	seen := make(map[reflect.Type]bool)

	for _, v := range types {
		t := reflect.TypeOf(v)
		if seen[t] {
			continue
		}
		seen[t] = true

		schemas[typeNameFromReflect(t)] = schemaFromType(t)
	}

	return schemas
}

// schemaFromType generates a JSON Schema from a reflect.Type.
func schemaFromType(t reflect.Type) map[string]any {
	if t.Kind() == reflect.Ptr {
		schema := schemaFromType(t.Elem())
		schema["nullable"] = true
		return schema
	}

	switch t.Kind() {
	case reflect.String:
		return map[string]any{"type": "string"}

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return map[string]any{"type": "integer"}

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return map[string]any{"type": "integer", "minimum": 0}

	case reflect.Float32, reflect.Float64:
		return map[string]any{"type": "number"}

	case reflect.Bool:
		return map[string]any{"type": "boolean"}

	case reflect.Struct:
		if t == reflect.TypeOf(time.Time{}) {
			return map[string]any{"type": "string", "format": "date-time"}
		}
		return schemaFromStruct(t)

	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 {
			return map[string]any{"type": "string", "format": "byte"}
		}
		return map[string]any{
			"type":  "array",
			"items": schemaFromType(t.Elem()),
		}

	case reflect.Map:
		return map[string]any{
			"type":                 "object",
			"additionalProperties": schemaFromType(t.Elem()),
		}

	case reflect.Interface:
		return map[string]any{}

	default:
		return map[string]any{"type": "string"}
	}
}

// schemaFromStruct generates a JSON Schema object definition from a struct type.
func schemaFromStruct(t reflect.Type) map[string]any {
	properties := make(map[string]any)
	var required []string

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)

		if !field.IsExported() {
			continue
		}

		jsonTag := field.Tag.Get("json")
		if jsonTag == "-" {
			continue
		}

		name, opts := parseJSONTag(jsonTag)
		if name == "" {
			name = field.Name
		}

		fieldSchema := schemaFromType(field.Type)

		if desc := field.Tag.Get("description"); desc != "" {
			fieldSchema["description"] = desc
		}

		properties[name] = fieldSchema

		if !strings.Contains(opts, "omitempty") && field.Type.Kind() != reflect.Ptr {
			required = append(required, name)
		}
	}

	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}

	if len(required) > 0 {
		schema["required"] = required
	}

	return schema
}

// parseJSONTag parses a json struct tag and returns the name and options.
func parseJSONTag(tag string) (name string, opts string) {
	if tag == "" {
		return "", ""
	}

	parts := strings.Split(tag, ",")
	name = parts[0]

	if len(parts) > 1 {
		opts = strings.Join(parts[1:], ",")
	}

	return name, opts
}

// typeNameFromReflect extracts a clean type name from a reflect.Type.
func typeNameFromReflect(t reflect.Type) string {
	if t.Kind() == reflect.Ptr {
		return typeNameFromReflect(t.Elem())
	}

	name := t.Name()
	if name == "" {
		name = t.String()
	}

	if idx := strings.LastIndex(name, "."); idx >= 0 {
		name = name[idx+1:]
	}

	return name
}

// writeYAMLFile writes a struct to a YAML file.
func writeYAMLFile(filename string, data any) error {
	yamlData, err := yaml.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal YAML: %w", err)
	}

	header := []byte(strings.TrimSpace(`
# OpenAPI 3.0 Specification for the EcoQuest API
# Generated by openapi-generator tool
# DO NOT EDIT MANUALLY - This file is auto-generated from the scenario registry
`) + "\n\n")

	content := append(header, yamlData...)

	if err := os.WriteFile(filename, content, 0644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	return nil
}
