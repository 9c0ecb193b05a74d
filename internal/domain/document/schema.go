package document

import (
	"encoding/json"
	"fmt"

	"github.com/xeipuuv/gojsonschema"

	"github.com/khoahotran/openforge/pkg/apperror"
)

// Shape checks only. Length bounds apply on write; documents already pinned
// by older clients must still resolve.
const profileSchema = `{
  "type": "object",
  "required": ["name", "bio", "skills"],
  "properties": {
    "version": {"type": "string"},
    "name": {"type": "string", "minLength": 1},
    "bio": {"type": "string", "minLength": 1},
    "skills": {"type": "array", "items": {"type": "string"}},
    "avatar": {
      "type": "object",
      "required": ["cid"],
      "properties": {"cid": {"type": "string", "minLength": 1}, "type": {"type": "string"}}
    },
    "createdAt": {"type": "number"},
    "updatedAt": {"type": "number"},
    "walletAddress": {"type": "string"}
  }
}`

const projectSchema = `{
  "type": "object",
  "required": ["title", "description", "tags"],
  "properties": {
    "version": {"type": "string"},
    "title": {"type": "string", "minLength": 1},
    "description": {"type": "string"},
    "tags": {"type": "array", "items": {"type": "string"}},
    "images": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["cid", "type"],
        "properties": {
          "cid": {"type": "string", "minLength": 1},
          "type": {"enum": ["cover", "gallery"]}
        }
      }
    },
    "createdAt": {"type": "number"},
    "updatedAt": {"type": "number"}
  }
}`

var schemas = map[Kind]*gojsonschema.Schema{
	KindProfile: mustSchema(profileSchema),
	KindProject: mustSchema(projectSchema),
}

func mustSchema(s string) *gojsonschema.Schema {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(s))
	if err != nil {
		panic(fmt.Sprintf("document: invalid embedded schema: %v", err))
	}
	return schema
}

// Check verifies that raw is a document of the expected variant.
func Check(expected Kind, cid string, raw []byte) error {
	got, err := PeekKind(raw)
	if err != nil {
		return &apperror.SchemaMismatchError{CID: cid, Expected: string(expected), Got: "", Details: []string{err.Error()}}
	}
	if got != expected {
		return &apperror.SchemaMismatchError{CID: cid, Expected: string(expected), Got: string(got)}
	}

	schema, ok := schemas[expected]
	if !ok {
		return fmt.Errorf("no schema registered for %q", expected)
	}
	result, err := schema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return &apperror.SchemaMismatchError{CID: cid, Expected: string(expected), Got: string(got), Details: []string{err.Error()}}
	}
	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			details = append(details, e.String())
		}
		return &apperror.SchemaMismatchError{CID: cid, Expected: string(expected), Got: string(got), Details: details}
	}
	return nil
}

func DecodeProfile(cid string, raw []byte) (*ProfileDocument, error) {
	if err := Check(KindProfile, cid, raw); err != nil {
		return nil, err
	}
	var doc ProfileDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, &apperror.SchemaMismatchError{CID: cid, Expected: string(KindProfile), Got: string(KindProfile), Details: []string{err.Error()}}
	}
	doc.Type = KindProfile
	return &doc, nil
}

func DecodeProject(cid string, raw []byte) (*ProjectDocument, error) {
	if err := Check(KindProject, cid, raw); err != nil {
		return nil, err
	}
	var doc ProjectDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, &apperror.SchemaMismatchError{CID: cid, Expected: string(KindProject), Got: string(KindProject), Details: []string{err.Error()}}
	}
	doc.Type = KindProject
	return &doc, nil
}
