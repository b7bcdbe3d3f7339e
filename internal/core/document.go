package core

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"time"
)

// Document is the generic key-value form of a record as stored by document
// backends. Keys follow the persisted field names.
type Document map[string]any

type DefaultReason string

const (
	ReasonMissing   DefaultReason = "missing"
	ReasonMalformed DefaultReason = "malformed"
)

// DecodeDefault records a field that fell back to its default while decoding.
// It is a diagnostic, never a decode failure.
type DecodeDefault struct {
	Entity string
	Field  string
	Reason DefaultReason
	Got    any
}

func (d DecodeDefault) Error() string {
	if d.Reason == ReasonMalformed {
		return fmt.Sprintf("%s.%s: malformed value %v (%T), default applied", d.Entity, d.Field, d.Got, d.Got)
	}
	return fmt.Sprintf("%s.%s: missing, default applied", d.Entity, d.Field)
}

type Diagnostics []DecodeDefault

// Fields lists the defaulted field names.
func (d Diagnostics) Fields() []string {
	out := make([]string, len(d))
	for i, x := range d {
		out[i] = x.Field
	}
	return out
}

func (d Diagnostics) Has(field string, reason DefaultReason) bool {
	for _, x := range d {
		if x.Field == field && x.Reason == reason {
			return true
		}
	}
	return false
}

// decoder reads typed fields from a Document and collects diagnostics.
type decoder struct {
	entity string
	doc    Document
	diags  Diagnostics
}

func (d *decoder) lookup(key string) (any, bool) {
	v, ok := d.doc[key]
	if !ok || v == nil {
		d.diags = append(d.diags, DecodeDefault{Entity: d.entity, Field: key, Reason: ReasonMissing})
		return nil, false
	}
	return v, true
}

func (d *decoder) malformed(key string, got any) {
	d.diags = append(d.diags, DecodeDefault{Entity: d.entity, Field: key, Reason: ReasonMalformed, Got: got})
}

func (d *decoder) str(key, def string) string {
	v, ok := d.lookup(key)
	if !ok {
		return def
	}
	s, ok := v.(string)
	if !ok {
		d.malformed(key, v)
		return def
	}
	return s
}

func (d *decoder) boolean(key string) bool {
	v, ok := d.lookup(key)
	if !ok {
		return false
	}
	b, ok := v.(bool)
	if !ok {
		d.malformed(key, v)
		return false
	}
	return b
}

func (d *decoder) integer(key string, def int) int {
	v, ok := d.lookup(key)
	if !ok {
		return def
	}
	f, ok := toFloat(v)
	if !ok || f != math.Trunc(f) {
		d.malformed(key, v)
		return def
	}
	return int(f)
}

func (d *decoder) money(key string) Money {
	v, ok := d.lookup(key)
	if !ok {
		return Money{}
	}
	f, ok := toFloat(v)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		d.malformed(key, v)
		return Money{}
	}
	return PesosToMoney(f)
}

func (d *decoder) timestamp(key string) time.Time {
	v, ok := d.lookup(key)
	if !ok {
		return time.Time{}
	}
	t, ok := toTime(v)
	if !ok {
		d.malformed(key, v)
		return time.Time{}
	}
	return t
}

// optionalTimestamp treats an explicit null as a valid absent value.
func (d *decoder) optionalTimestamp(key string) *time.Time {
	v, present := d.doc[key]
	if !present {
		d.diags = append(d.diags, DecodeDefault{Entity: d.entity, Field: key, Reason: ReasonMissing})
		return nil
	}
	if v == nil {
		return nil
	}
	t, ok := toTime(v)
	if !ok {
		d.malformed(key, v)
		return nil
	}
	return &t
}

func (d *decoder) strings(key string) []string {
	v, ok := d.lookup(key)
	if !ok {
		return []string{}
	}
	switch list := v.(type) {
	case []string:
		return append([]string{}, list...)
	case []any:
		out := make([]string, 0, len(list))
		dropped := false
		for _, item := range list {
			s, ok := item.(string)
			if !ok {
				dropped = true
				continue
			}
			out = append(out, s)
		}
		if dropped {
			d.malformed(key, v)
		}
		return out
	default:
		d.malformed(key, v)
		return []string{}
	}
}

// toFloat accepts any integer or float kind, including named numeric types,
// and json.Number.
func toFloat(v any) (float64, bool) {
	if n, ok := v.(json.Number); ok {
		f, err := n.Float64()
		return f, err == nil
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	}
	return 0, false
}

func toTime(v any) (time.Time, bool) {
	if t, ok := v.(time.Time); ok {
		if t.IsZero() {
			return time.Time{}, true
		}
		return t.UTC(), true
	}
	f, ok := toFloat(v)
	if !ok || f != math.Trunc(f) {
		return time.Time{}, false
	}
	return millisToTime(int64(f)), true
}

func millisToTime(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

// Millis converts a timestamp to epoch milliseconds, 0 for the zero time.
func Millis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func cloneStrings(in []string) []string {
	if in == nil {
		return []string{}
	}
	return append([]string{}, in...)
}

func DecodeUser(doc Document) (User, Diagnostics) {
	d := &decoder{entity: "user", doc: doc}
	u := User{
		ID:              d.str("id", ""),
		FullName:        d.str("fullName", ""),
		Email:           d.str("email", ""),
		PhoneNumber:     d.str("phoneNumber", ""),
		Role:            Role(d.str("role", "")),
		CreatedAt:       d.timestamp("createdAt"),
		RoleSelectedAt:  d.timestamp("roleSelectedAt"),
		ActiveGroups:    d.strings("activeGroups"),
		TotalFunds:      d.money("totalFunds"),
		ProfileImageURL: d.str("profileImageUrl", ""),
		FCMToken:        d.str("fcmToken", ""),
		IsVerified:      d.boolean("isVerified"),
	}
	return u, d.diags
}

func EncodeUser(u User) Document {
	return Document{
		"id":              u.ID,
		"fullName":        u.FullName,
		"email":           u.Email,
		"phoneNumber":     u.PhoneNumber,
		"role":            string(u.Role),
		"createdAt":       Millis(u.CreatedAt),
		"roleSelectedAt":  Millis(u.RoleSelectedAt),
		"activeGroups":    cloneStrings(u.ActiveGroups),
		"totalFunds":      u.TotalFunds.Pesos(),
		"profileImageUrl": u.ProfileImageURL,
		"fcmToken":        u.FCMToken,
		"isVerified":      u.IsVerified,
	}
}

func DecodeGroup(doc Document) (Group, Diagnostics) {
	d := &decoder{entity: "group", doc: doc}
	def := NewGroup()
	g := Group{
		ID:                 d.str("id", ""),
		Name:               d.str("name", ""),
		Description:        d.str("description", ""),
		HeadID:             d.str("headId", ""),
		Members:            d.strings("members"),
		ContributionAmount: d.money("contributionAmount"),
		Frequency:          Frequency(d.str("frequency", string(def.Frequency))),
		StartDate:          d.timestamp("startDate"),
		EndDate:            d.timestamp("endDate"),
		TotalFunds:         d.money("totalFunds"),
		CollectedFunds:     d.money("collectedFunds"),
		NextCollectionDate: d.timestamp("nextCollectionDate"),
		CollectionOrder:    d.strings("collectionOrder"),
		CurrentRound:       d.integer("currentRound", def.CurrentRound),
		TotalRounds:        d.integer("totalRounds", def.TotalRounds),
		Status:             GroupStatus(d.str("status", string(def.Status))),
		CreatedAt:          d.timestamp("createdAt"),
		UpdatedAt:          d.timestamp("updatedAt"),
		IsPublic:           d.boolean("isPublic"),
		MaxMembers:         d.integer("maxMembers", def.MaxMembers),
	}
	return g, d.diags
}

func EncodeGroup(g Group) Document {
	return Document{
		"id":                 g.ID,
		"name":               g.Name,
		"description":        g.Description,
		"headId":             g.HeadID,
		"members":            cloneStrings(g.Members),
		"contributionAmount": g.ContributionAmount.Pesos(),
		"frequency":          string(g.Frequency),
		"startDate":          Millis(g.StartDate),
		"endDate":            Millis(g.EndDate),
		"totalFunds":         g.TotalFunds.Pesos(),
		"collectedFunds":     g.CollectedFunds.Pesos(),
		"nextCollectionDate": Millis(g.NextCollectionDate),
		"collectionOrder":    cloneStrings(g.CollectionOrder),
		"currentRound":       g.CurrentRound,
		"totalRounds":        g.TotalRounds,
		"status":             string(g.Status),
		"createdAt":          Millis(g.CreatedAt),
		"updatedAt":          Millis(g.UpdatedAt),
		"isPublic":           g.IsPublic,
		"maxMembers":         g.MaxMembers,
	}
}

func DecodeCollection(doc Document) (Collection, Diagnostics) {
	d := &decoder{entity: "collection", doc: doc}
	def := NewCollection()
	c := Collection{
		ID:               d.str("id", ""),
		GroupID:          d.str("groupId", ""),
		UserID:           d.str("userId", ""),
		Amount:           d.money("amount"),
		DueDate:          d.timestamp("dueDate"),
		PaidDate:         d.optionalTimestamp("paidDate"),
		Status:           CollectionStatus(d.str("status", string(def.Status))),
		PaymentMethod:    PaymentMethod(d.str("paymentMethod", "")),
		PaymentReference: d.str("paymentReference", ""),
		Round:            d.integer("round", def.Round),
		CreatedAt:        d.timestamp("createdAt"),
		UpdatedAt:        d.timestamp("updatedAt"),
		ReminderSent:     d.boolean("reminderSent"),
		LastReminderDate: d.timestamp("lastReminderDate"),
		Notes:            d.str("notes", ""),
	}
	return c, d.diags
}

func EncodeCollection(c Collection) Document {
	var paid any
	if c.PaidDate != nil {
		paid = Millis(*c.PaidDate)
	}
	return Document{
		"id":               c.ID,
		"groupId":          c.GroupID,
		"userId":           c.UserID,
		"amount":           c.Amount.Pesos(),
		"dueDate":          Millis(c.DueDate),
		"paidDate":         paid,
		"status":           string(c.Status),
		"paymentMethod":    string(c.PaymentMethod),
		"paymentReference": c.PaymentReference,
		"round":            c.Round,
		"createdAt":        Millis(c.CreatedAt),
		"updatedAt":        Millis(c.UpdatedAt),
		"reminderSent":     c.ReminderSent,
		"lastReminderDate": Millis(c.LastReminderDate),
		"notes":            c.Notes,
	}
}
