package models

import (
	"encoding/json"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/shared"
	"google.golang.org/adk/model"
	"google.golang.org/genai"

	"github.com/easeaico/npc-town/internal/utils"
)

// buildOpenAIParams converts ADK request to OpenAI parameters
func buildOpenAIParams(req *model.LLMRequest, model string) *openai.ChatCompletionNewParams {
	params := openai.ChatCompletionNewParams{
		Model: req.Model,
	}
	if req.Model == "" {
		params.Model = model
	}

	var messages []openai.ChatCompletionMessageParamUnion
	if req.Config != nil && req.Config.SystemInstruction != nil {
		if text := utils.ExtractContentText(req.Config.SystemInstruction); text != "" {
			messages = append(messages, openai.SystemMessage(text))
		}
	}
	messages = append(messages, convertContentsToMessages(req.Contents)...)
	if len(messages) > 0 {
		params.Messages = messages
	}

	if req.Config != nil {
		if req.Config.Temperature != nil {
			params.Temperature = openai.Float(float64(*req.Config.Temperature))
		}
		if req.Config.MaxOutputTokens > 0 {
			params.MaxTokens = openai.Int(int64(req.Config.MaxOutputTokens))
		}
		if req.Config.TopP != nil {
			params.TopP = openai.Float(float64(*req.Config.TopP))
		}
		if req.Config.ResponseMIMEType == "application/json" {
			params.ResponseFormat = convertResponseFormat(req.Config.ResponseJsonSchema)
		}
	}

	return &params
}

// convertResponseFormat maps a JSON response request onto OpenAI's
// response_format. A *jsonschema.Schema yields json_schema, anything else
// falls back to json_object.
func convertResponseFormat(schema any) openai.ChatCompletionNewParamsResponseFormatUnion {
	s, ok := schema.(*jsonschema.Schema)
	if !ok || s == nil {
		return openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		}
	}

	name := s.Title
	if name == "" {
		name = "response"
	}
	return openai.ChatCompletionNewParamsResponseFormatUnion{
		OfJSONSchema: &shared.ResponseFormatJSONSchemaParam{
			JSONSchema: shared.ResponseFormatJSONSchemaJSONSchemaParam{
				Name:   name,
				Schema: convertSchemaToJSONSchema(s),
			},
		},
	}
}

// convertSchemaToJSONSchema converts jsonschema.Schema to JSON Schema format
func convertSchemaToJSONSchema(schema *jsonschema.Schema) map[string]any {
	result := convertSchemaProperty(schema)
	if _, ok := result["type"]; !ok {
		result["type"] = "object"
	}
	if schema.AdditionalProperties != nil {
		result["additionalProperties"] = convertSchemaProperty(schema.AdditionalProperties)
	}
	return result
}

// convertSchemaProperty converts a single jsonschema.Schema property to JSON Schema format
func convertSchemaProperty(schema *jsonschema.Schema) map[string]any {
	if schema == nil {
		return nil
	}

	prop := make(map[string]any)

	if len(schema.Types) > 0 {
		prop["type"] = schema.Types[0]
	} else if schema.Type != "" {
		prop["type"] = schema.Type
	}
	if schema.Description != "" {
		prop["description"] = schema.Description
	}
	if len(schema.Enum) > 0 {
		prop["enum"] = schema.Enum
	}
	if len(schema.Default) > 0 {
		var defaultVal any
		if err := json.Unmarshal(schema.Default, &defaultVal); err == nil {
			prop["default"] = defaultVal
		}
	}
	if schema.Minimum != nil {
		prop["minimum"] = *schema.Minimum
	}
	if schema.Maximum != nil {
		prop["maximum"] = *schema.Maximum
	}
	if schema.MinLength != nil {
		prop["minLength"] = *schema.MinLength
	}
	if schema.MaxLength != nil {
		prop["maxLength"] = *schema.MaxLength
	}
	if schema.Items != nil {
		prop["items"] = convertSchemaProperty(schema.Items)
	}
	if len(schema.Properties) > 0 {
		properties := make(map[string]any, len(schema.Properties))
		for name, propSchema := range schema.Properties {
			if propSchema != nil {
				properties[name] = convertSchemaProperty(propSchema)
			}
		}
		prop["properties"] = properties
	}
	if len(schema.Required) > 0 {
		prop["required"] = schema.Required
	}

	return prop
}

// convertContentsToMessages converts genai.Content to OpenAI messages
func convertContentsToMessages(contents []*genai.Content) []openai.ChatCompletionMessageParamUnion {
	var messages []openai.ChatCompletionMessageParamUnion

	for _, content := range contents {
		if content == nil {
			continue
		}
		textContent := strings.TrimSpace(utils.ExtractContentText(content))
		if textContent == "" {
			continue
		}

		switch content.Role {
		case "user":
			messages = append(messages, openai.UserMessage(textContent))
		case "model", "assistant":
			messages = append(messages, openai.AssistantMessage(textContent))
		case "system":
			messages = append(messages, openai.SystemMessage(textContent))
		default:
			messages = append(messages, openai.UserMessage(textContent))
		}
	}

	return messages
}
