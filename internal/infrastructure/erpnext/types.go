package erpnext

import (
	"bytes"
	"encoding/json"
)

// createResponse is the body of a successful resource create. data is
// normally the created document, some proxies return a list instead.
type createResponse struct {
	Data json.RawMessage `json:"data"`
}

type document struct {
	Name string `json:"name"`
}

func (r createResponse) name() string {
	data := bytes.TrimSpace(r.Data)
	if len(data) == 0 {
		return ""
	}
	switch data[0] {
	case '{':
		var doc document
		if json.Unmarshal(data, &doc) == nil {
			return doc.Name
		}
	case '[':
		var docs []document
		if json.Unmarshal(data, &docs) == nil && len(docs) > 0 {
			return docs[len(docs)-1].Name
		}
	}
	return ""
}

// errorResponse is the exception payload the ERP returns with 4xx/5xx
type errorResponse struct {
	ExcType        string      `json:"exc_type"`
	Exception      string      `json:"exception"`
	ServerMessages looseString `json:"_server_messages"`
}

// looseString keeps any JSON value as text. _server_messages is a JSON
// encoded list inside a string, but older servers send the list itself.
type looseString string

func (s *looseString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*s = looseString(v)
		return nil
	}
	if bytes.Equal(data, []byte("null")) {
		*s = ""
		return nil
	}
	*s = looseString(data)
	return nil
}

// listResponse is the body of a resource list query
type listResponse struct {
	Data []document `json:"data"`
}
