package zkbio

import (
	"bytes"
	"encoding/json"
	"strings"
)

// envelope is the common shape of paginated list responses
type envelope struct {
	Code  int             `json:"code"`
	Msg   string          `json:"msg"`
	Count int             `json:"count"`
	Data  json.RawMessage `json:"data"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

type tokenRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// flexString accepts both JSON strings and numbers; the source returns
// numeric transaction ids and sometimes numeric employee codes.
type flexString string

func (s *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*s = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*s = flexString(strings.TrimSpace(v))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*s = flexString(n.String())
	return nil
}

type department struct {
	Name string `json:"dept_name"`
}

type area struct {
	Name string `json:"area_name"`
}

type employeeRecord struct {
	EmpCode    flexString  `json:"emp_code"`
	FirstName  string      `json:"first_name"`
	LastName   string      `json:"last_name"`
	FullName   string      `json:"full_name"`
	Department *department `json:"department"`
	Area       []area      `json:"area"`
}

type transactionRecord struct {
	ID         flexString `json:"id"`
	EmpCode    flexString `json:"emp_code"`
	PunchTime  string     `json:"punch_time"`
	Department string     `json:"department"`
	AreaAlias  string     `json:"area_alias"`
}
