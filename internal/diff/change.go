package diff

import (
	"encoding/json"
	"fmt"

	"gitsheets/internal/table"
)

// Kind tags a change record in its serialized form.
type Kind string

const (
	KindColumnAdded   Kind = "column_added"
	KindColumnRemoved Kind = "column_removed"
	KindRowAdded      Kind = "row_added"
	KindRowRemoved    Kind = "row_removed"
	KindCellChanged   Kind = "cell_changed"
)

// Change is one of ColumnAdded, ColumnRemoved, RowAdded, RowRemoved or
// CellChanged. The set is closed.
type Change interface {
	Kind() Kind
	isChange()
}

// RowRef identifies a row. Key is set when rows were matched by primary key.
// Index is the row position in the table the row was read from: the "to"
// table for additions, the "from" table otherwise.
type RowRef struct {
	Key   table.Key `json:"key,omitempty"`
	Index int       `json:"index"`
}

func (r RowRef) String() string {
	if len(r.Key) > 0 {
		return r.Key.String()
	}
	return fmt.Sprintf("#%d", r.Index)
}

// id distinguishes rows within a single diff.
func (r RowRef) id() string {
	if len(r.Key) > 0 {
		return "k" + r.Key.Encode()
	}
	return fmt.Sprintf("i%d", r.Index)
}

type ColumnAdded struct {
	Header string `json:"header"`
	Index  int    `json:"index"`
}

type ColumnRemoved struct {
	Header string `json:"header"`
	Index  int    `json:"index"`
}

type RowAdded struct {
	Row    RowRef   `json:"row"`
	Values []string `json:"values"`
}

type RowRemoved struct {
	Row    RowRef   `json:"row"`
	Values []string `json:"values"`
}

type CellChanged struct {
	Row    RowRef `json:"row"`
	Column string `json:"column"`
	// ColumnIndex is the position of Column in the "from" table.
	ColumnIndex int    `json:"column_index"`
	Old         string `json:"old"`
	New         string `json:"new"`
}

func (ColumnAdded) Kind() Kind   { return KindColumnAdded }
func (ColumnRemoved) Kind() Kind { return KindColumnRemoved }
func (RowAdded) Kind() Kind      { return KindRowAdded }
func (RowRemoved) Kind() Kind    { return KindRowRemoved }
func (CellChanged) Kind() Kind   { return KindCellChanged }

func (ColumnAdded) isChange()   {}
func (ColumnRemoved) isChange() {}
func (RowAdded) isChange()      {}
func (RowRemoved) isChange()    {}
func (CellChanged) isChange()   {}

func (c ColumnAdded) MarshalJSON() ([]byte, error) {
	type alias ColumnAdded
	return json.Marshal(struct {
		Type Kind `json:"type"`
		alias
	}{c.Kind(), alias(c)})
}

func (c ColumnRemoved) MarshalJSON() ([]byte, error) {
	type alias ColumnRemoved
	return json.Marshal(struct {
		Type Kind `json:"type"`
		alias
	}{c.Kind(), alias(c)})
}

func (c RowAdded) MarshalJSON() ([]byte, error) {
	type alias RowAdded
	return json.Marshal(struct {
		Type Kind `json:"type"`
		alias
	}{c.Kind(), alias(c)})
}

func (c RowRemoved) MarshalJSON() ([]byte, error) {
	type alias RowRemoved
	return json.Marshal(struct {
		Type Kind `json:"type"`
		alias
	}{c.Kind(), alias(c)})
}

func (c CellChanged) MarshalJSON() ([]byte, error) {
	type alias CellChanged
	return json.Marshal(struct {
		Type Kind `json:"type"`
		alias
	}{c.Kind(), alias(c)})
}

// decodeChange reads one tagged change record.
func decodeChange(data []byte) (Change, error) {
	var tag struct {
		Type Kind `json:"type"`
	}
	if err := json.Unmarshal(data, &tag); err != nil {
		return nil, err
	}

	switch tag.Type {
	case KindColumnAdded:
		var c ColumnAdded
		err := json.Unmarshal(data, &c)
		return c, err
	case KindColumnRemoved:
		var c ColumnRemoved
		err := json.Unmarshal(data, &c)
		return c, err
	case KindRowAdded:
		var c RowAdded
		err := json.Unmarshal(data, &c)
		return c, err
	case KindRowRemoved:
		var c RowRemoved
		err := json.Unmarshal(data, &c)
		return c, err
	case KindCellChanged:
		var c CellChanged
		err := json.Unmarshal(data, &c)
		return c, err
	}
	return nil, fmt.Errorf("unknown change type %q", tag.Type)
}
