// Package widget holds the canvas widget model and its per-room store.
//
// A widget's content is a tagged union discriminated by the widgetType field
// carried inside the content object. The variant is fixed at creation;
// partial updates merge into the existing variant but can never switch it.
package widget

import (
	"encoding/json"
	"fmt"
)

type Type string

const (
	TypeTechStack  Type = "TECH_STACK"
	TypePostIt     Type = "POST_IT"
	TypeGroundRule Type = "GROUND_RULE"
)

// Valid reports whether t is one of the known widget types.
func (t Type) Valid() bool {
	switch t {
	case TypeTechStack, TypePostIt, TypeGroundRule:
		return true
	}
	return false
}

// Content is the type-specific payload of a widget.
type Content interface {
	// WidgetType returns the discriminator tag of the variant.
	WidgetType() Type

	// clone returns a deep copy so store snapshots never alias live state.
	clone() Content
}

type TechStackContent struct {
	SelectedItems []string `json:"selectedItems"`
}

func (TechStackContent) WidgetType() Type { return TypeTechStack }

func (c TechStackContent) clone() Content {
	c.SelectedItems = cloneSlice(c.SelectedItems)
	return c
}

func (c TechStackContent) MarshalJSON() ([]byte, error) {
	type alias TechStackContent
	return json.Marshal(struct {
		WidgetType Type `json:"widgetType"`
		alias
	}{TypeTechStack, alias(c)})
}

type PostItContent struct {
	Text            string  `json:"text"`
	BackgroundColor string  `json:"backgroundColor"`
	FontSize        float64 `json:"fontSize"`
}

func (PostItContent) WidgetType() Type { return TypePostIt }

func (c PostItContent) clone() Content { return c }

func (c PostItContent) MarshalJSON() ([]byte, error) {
	type alias PostItContent
	return json.Marshal(struct {
		WidgetType Type `json:"widgetType"`
		alias
	}{TypePostIt, alias(c)})
}

type GroundRuleContent struct {
	Rules []string `json:"rules,omitempty"`
}

func (GroundRuleContent) WidgetType() Type { return TypeGroundRule }

func (c GroundRuleContent) clone() Content {
	c.Rules = cloneSlice(c.Rules)
	return c
}

func (c GroundRuleContent) MarshalJSON() ([]byte, error) {
	type alias GroundRuleContent
	return json.Marshal(struct {
		WidgetType Type `json:"widgetType"`
		alias
	}{TypeGroundRule, alias(c)})
}

// Data carries the shared canvas geometry plus the variant content.
type Data struct {
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Width   float64 `json:"width"`
	Height  float64 `json:"height"`
	ZIndex  int     `json:"zIndex"`
	Content Content `json:"content"`
}

func (d *Data) UnmarshalJSON(raw []byte) error {
	type alias Data
	shadow := struct {
		*alias
		Content json.RawMessage `json:"content"`
	}{alias: (*alias)(d)}
	if err := json.Unmarshal(raw, &shadow); err != nil {
		return err
	}
	if len(shadow.Content) == 0 {
		d.Content = nil
		return nil
	}
	content, err := DecodeContent(shadow.Content)
	if err != nil {
		return err
	}
	d.Content = content
	return nil
}

// DecodeContent picks the content variant from the widgetType discriminator.
func DecodeContent(raw []byte) (Content, error) {
	var probe struct {
		WidgetType Type `json:"widgetType"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, fmt.Errorf("decode content discriminator: %w", err)
	}

	switch probe.WidgetType {
	case TypeTechStack:
		var c TechStackContent
		if err := json.Unmarshal(raw, &c); err != nil {
			return nil, err
		}
		return c, nil
	case TypePostIt:
		var c PostItContent
		if err := json.Unmarshal(raw, &c); err != nil {
			return nil, err
		}
		return c, nil
	case TypeGroundRule:
		var c GroundRuleContent
		if err := json.Unmarshal(raw, &c); err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unknown widgetType %q: %w", string(probe.WidgetType), ErrBadContent)
	}
}

// Widget is one positioned canvas object. The ID is client-generated and
// unique within its room.
type Widget struct {
	WidgetID string `json:"widgetId"`
	Type     Type   `json:"type"`
	Data     Data   `json:"data"`
}

// Clone returns a deep copy, used for store snapshots.
func (w Widget) Clone() Widget {
	if w.Data.Content != nil {
		w.Data.Content = w.Data.Content.clone()
	}
	return w
}

func cloneSlice(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
