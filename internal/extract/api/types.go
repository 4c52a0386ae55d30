package api

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Valence response shapes. Only the fields we map are declared.

type pagingInfo struct {
	Bookmark     string `json:"Bookmark"`
	HasMoreItems bool   `json:"HasMoreItems"`
}

type enrollmentPage struct {
	PagingInfo pagingInfo    `json:"PagingInfo"`
	Items      *[]enrollment `json:"Items"`
}

type enrollment struct {
	OrgUnit orgUnit `json:"OrgUnit"`
	Access  access  `json:"Access"`
}

type orgUnit struct {
	ID      flexID       `json:"Id"`
	Type    *orgUnitType `json:"Type"`
	Name    string       `json:"Name"`
	Code    string       `json:"Code"`
	HomeURL string       `json:"HomeUrl"`
}

type orgUnitType struct {
	ID   int    `json:"Id"`
	Code string `json:"Code"`
}

type access struct {
	IsActive  *bool  `json:"IsActive"`
	StartDate string `json:"StartDate"`
	EndDate   string `json:"EndDate"`
}

type gradeValue struct {
	GradeObjectName   string   `json:"GradeObjectName"`
	DisplayedGrade    string   `json:"DisplayedGrade"`
	PointsNumerator   *float64 `json:"PointsNumerator"`
	PointsDenominator *float64 `json:"PointsDenominator"`
	LastModified      string   `json:"LastModified"`
}

type dropboxFolder struct {
	ID       flexID `json:"Id"`
	Name     string `json:"Name"`
	DueDate  string `json:"DueDate"`
	IsHidden bool   `json:"IsHidden"`
}

type newsItem struct {
	Title     string   `json:"Title"`
	Body      richText `json:"Body"`
	StartDate string   `json:"StartDate"`
	IsHidden  bool     `json:"IsHidden"`
}

type richText struct {
	Text string `json:"Text"`
	HTML string `json:"Html"`
}

// flexID accepts an identifier encoded as a JSON number or string
type flexID string

func (id *flexID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = flexID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*id = flexID(n.String())
	return nil
}
