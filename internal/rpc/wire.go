package rpc

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/types/known/structpb"
)

// ErrMalformed is returned when a message lacks required fields or carries
// fields of the wrong kind.
var ErrMalformed = errors.New("malformed message")

// Note field names. They match the record column names on both sides.
const (
	FieldID              = "id"
	FieldUserID          = "user_id"
	FieldContent         = "content"
	FieldCreatedAt       = "created_at"
	FieldUpdatedAt       = "updated_at"
	FieldIsDeleted       = "is_deleted"
	FieldServerUpdatedAt = "server_updated_at"
)

// Note is the transport form of a note record. Timestamps are ms since epoch.
type Note struct {
	ID              string
	UserID          string
	Content         string
	CreatedAt       int64
	UpdatedAt       int64
	IsDeleted       bool
	ServerUpdatedAt int64
}

type EventKind string

const (
	EventInsert EventKind = "INSERT"
	EventUpdate EventKind = "UPDATE"
	EventDelete EventKind = "DELETE"
)

func (k EventKind) Valid() bool {
	switch k {
	case EventInsert, EventUpdate, EventDelete:
		return true
	}
	return false
}

// Event is one change-feed message. New is set for inserts and updates,
// Old for deletes; either may be nil.
type Event struct {
	Kind EventKind
	New  *Note
	Old  *Note
}

type Credentials struct {
	Email    string
	Password string
}

type Tokens struct {
	UserID       string
	AccessToken  string
	RefreshToken string
}

// reader pulls typed values out of a Struct and remembers the first kind
// mismatch. Absent keys yield zero values.
type reader struct {
	s   *structpb.Struct
	err error
}

func newReader(s *structpb.Struct) *reader {
	if s == nil {
		return &reader{s: &structpb.Struct{}}
	}
	return &reader{s: s}
}

func (r *reader) value(key string) *structpb.Value {
	v, ok := r.s.GetFields()[key]
	if !ok {
		return nil
	}
	if _, isNull := v.GetKind().(*structpb.Value_NullValue); isNull {
		return nil
	}
	return v
}

func (r *reader) fail(key, want string) {
	if r.err == nil {
		r.err = fmt.Errorf("%w: field %q is not a %s", ErrMalformed, key, want)
	}
}

func (r *reader) str(key string) string {
	v := r.value(key)
	if v == nil {
		return ""
	}
	s, ok := v.GetKind().(*structpb.Value_StringValue)
	if !ok {
		r.fail(key, "string")
		return ""
	}
	return s.StringValue
}

func (r *reader) num(key string) int64 {
	v := r.value(key)
	if v == nil {
		return 0
	}
	n, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok {
		r.fail(key, "number")
		return 0
	}
	return int64(n.NumberValue)
}

func (r *reader) flag(key string) bool {
	v := r.value(key)
	if v == nil {
		return false
	}
	b, ok := v.GetKind().(*structpb.Value_BoolValue)
	if !ok {
		r.fail(key, "bool")
		return false
	}
	return b.BoolValue
}

func (r *reader) object(key string) *structpb.Struct {
	v := r.value(key)
	if v == nil {
		return nil
	}
	s, ok := v.GetKind().(*structpb.Value_StructValue)
	if !ok {
		r.fail(key, "struct")
		return nil
	}
	return s.StructValue
}

func (r *reader) list(key string) []*structpb.Value {
	v := r.value(key)
	if v == nil {
		return nil
	}
	l, ok := v.GetKind().(*structpb.Value_ListValue)
	if !ok {
		r.fail(key, "list")
		return nil
	}
	return l.ListValue.GetValues()
}

func noteFields(n *Note) map[string]*structpb.Value {
	return map[string]*structpb.Value{
		FieldID:              structpb.NewStringValue(n.ID),
		FieldUserID:          structpb.NewStringValue(n.UserID),
		FieldContent:         structpb.NewStringValue(n.Content),
		FieldCreatedAt:       structpb.NewNumberValue(float64(n.CreatedAt)),
		FieldUpdatedAt:       structpb.NewNumberValue(float64(n.UpdatedAt)),
		FieldIsDeleted:       structpb.NewBoolValue(n.IsDeleted),
		FieldServerUpdatedAt: structpb.NewNumberValue(float64(n.ServerUpdatedAt)),
	}
}

func EncodeNote(n *Note) *structpb.Struct {
	return &structpb.Struct{Fields: noteFields(n)}
}

// DecodeNote requires a non-empty id; all other fields are optional so that
// delete events carrying only {id, user_id} decode cleanly.
func DecodeNote(s *structpb.Struct) (*Note, error) {
	r := newReader(s)
	n := &Note{
		ID:              r.str(FieldID),
		UserID:          r.str(FieldUserID),
		Content:         r.str(FieldContent),
		CreatedAt:       r.num(FieldCreatedAt),
		UpdatedAt:       r.num(FieldUpdatedAt),
		IsDeleted:       r.flag(FieldIsDeleted),
		ServerUpdatedAt: r.num(FieldServerUpdatedAt),
	}
	if r.err != nil {
		return nil, r.err
	}
	if n.ID == "" {
		return nil, fmt.Errorf("%w: note without id", ErrMalformed)
	}
	return n, nil
}

func EncodeNoteList(notes []*Note) *structpb.Struct {
	values := make([]*structpb.Value, 0, len(notes))
	for _, n := range notes {
		values = append(values, structpb.NewStructValue(EncodeNote(n)))
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"notes": structpb.NewListValue(&structpb.ListValue{Values: values}),
	}}
}

func DecodeNoteList(s *structpb.Struct) ([]*Note, error) {
	r := newReader(s)
	items := r.list("notes")
	if r.err != nil {
		return nil, r.err
	}
	notes := make([]*Note, 0, len(items))
	for i, v := range items {
		sv, ok := v.GetKind().(*structpb.Value_StructValue)
		if !ok {
			return nil, fmt.Errorf("%w: notes[%d] is not a struct", ErrMalformed, i)
		}
		n, err := DecodeNote(sv.StructValue)
		if err != nil {
			return nil, fmt.Errorf("notes[%d]: %w", i, err)
		}
		notes = append(notes, n)
	}
	return notes, nil
}

func nullableNote(n *Note) *structpb.Value {
	if n == nil {
		return structpb.NewNullValue()
	}
	return structpb.NewStructValue(EncodeNote(n))
}

func EncodeEvent(e Event) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"kind": structpb.NewStringValue(string(e.Kind)),
		"new":  nullableNote(e.New),
		"old":  nullableNote(e.Old),
	}}
}

// DecodeEvent rejects unknown kinds and events carrying neither record.
func DecodeEvent(s *structpb.Struct) (Event, error) {
	r := newReader(s)
	kind := EventKind(r.str("kind"))
	newS := r.object("new")
	oldS := r.object("old")
	if r.err != nil {
		return Event{}, r.err
	}
	if !kind.Valid() {
		return Event{}, fmt.Errorf("%w: unknown event kind %q", ErrMalformed, kind)
	}
	if newS == nil && oldS == nil {
		return Event{}, fmt.Errorf("%w: event without records", ErrMalformed)
	}

	e := Event{Kind: kind}
	var err error
	if newS != nil {
		if e.New, err = DecodeNote(newS); err != nil {
			return Event{}, fmt.Errorf("new: %w", err)
		}
	}
	if oldS != nil {
		if e.Old, err = DecodeNote(oldS); err != nil {
			return Event{}, fmt.Errorf("old: %w", err)
		}
	}
	return e, nil
}

func EncodeCredentials(c Credentials) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"email":    structpb.NewStringValue(c.Email),
		"password": structpb.NewStringValue(c.Password),
	}}
}

func DecodeCredentials(s *structpb.Struct) (Credentials, error) {
	r := newReader(s)
	c := Credentials{Email: r.str("email"), Password: r.str("password")}
	if r.err != nil {
		return Credentials{}, r.err
	}
	return c, nil
}

func EncodeTokens(t Tokens) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"user_id":       structpb.NewStringValue(t.UserID),
		"access_token":  structpb.NewStringValue(t.AccessToken),
		"refresh_token": structpb.NewStringValue(t.RefreshToken),
	}}
}

func DecodeTokens(s *structpb.Struct) (Tokens, error) {
	r := newReader(s)
	t := Tokens{
		UserID:       r.str("user_id"),
		AccessToken:  r.str("access_token"),
		RefreshToken: r.str("refresh_token"),
	}
	if r.err != nil {
		return Tokens{}, r.err
	}
	return t, nil
}

// Single-field messages.

func EncodeString(key, value string) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{key: structpb.NewStringValue(value)}}
}

func DecodeString(s *structpb.Struct, key string) (string, error) {
	r := newReader(s)
	v := r.str(key)
	return v, r.err
}

func EncodeInt64(key string, value int64) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{key: structpb.NewNumberValue(float64(value))}}
}

func DecodeInt64(s *structpb.Struct, key string) (int64, error) {
	r := newReader(s)
	v := r.num(key)
	return v, r.err
}

// SelectNotes request: {user_id, after}.

func EncodeSelectRequest(userID string, after int64) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		FieldUserID: structpb.NewStringValue(userID),
		"after":     structpb.NewNumberValue(float64(after)),
	}}
}

func DecodeSelectRequest(s *structpb.Struct) (userID string, after int64, err error) {
	r := newReader(s)
	userID = r.str(FieldUserID)
	after = r.num("after")
	return userID, after, r.err
}

// ExportNotes response: {key, url}.

func EncodeExport(key, url string) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"key": structpb.NewStringValue(key),
		"url": structpb.NewStringValue(url),
	}}
}

func DecodeExport(s *structpb.Struct) (key, url string, err error) {
	r := newReader(s)
	key = r.str("key")
	url = r.str("url")
	return key, url, r.err
}
