package parser

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"regexp"
	"strconv"

	"gopkg.in/yaml.v3"
)

var yamlLineRe = regexp.MustCompile(`line (\d+)`)

// CheckJSON fully decodes content and reports the first error with its line.
func CheckJSON(content []byte) *SyntaxError {
	var v any
	err := json.Unmarshal(content, &v)
	if err == nil {
		return nil
	}

	var offset int64 = -1
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.As(err, &syntaxErr):
		offset = syntaxErr.Offset
	case errors.As(err, &typeErr):
		offset = typeErr.Offset
	}
	return &SyntaxError{Line: lineAtOffset(content, offset), Message: err.Error()}
}

// CheckYAML decodes every document in content and reports the first error.
func CheckYAML(content []byte) *SyntaxError {
	dec := yaml.NewDecoder(bytes.NewReader(content))
	for {
		var v any
		err := dec.Decode(&v)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			line := 1
			if m := yamlLineRe.FindStringSubmatch(err.Error()); m != nil {
				line, _ = strconv.Atoi(m[1])
			}
			return &SyntaxError{Line: line, Message: err.Error()}
		}
	}
}

func lineAtOffset(content []byte, offset int64) int {
	if offset < 0 {
		return 1
	}
	if offset > int64(len(content)) {
		offset = int64(len(content))
	}
	return bytes.Count(content[:offset], []byte("\n")) + 1
}
