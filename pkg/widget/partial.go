package widget

// PartialData carries only the fields a client sent in a widget update.
// Pointer fields distinguish "absent" from zero values: absent fields keep
// their prior value, present fields overwrite.
type PartialData struct {
	X       *float64        `json:"x"`
	Y       *float64        `json:"y"`
	Width   *float64        `json:"width"`
	Height  *float64        `json:"height"`
	ZIndex  *int            `json:"zIndex"`
	Content *PartialContent `json:"content"`
}

// PartialContent is the union of all variant fields. Only the fields that
// belong to the existing variant apply during a merge; the widgetType tag is
// accepted on the wire but never merged.
type PartialContent struct {
	WidgetType      *Type     `json:"widgetType"`
	SelectedItems   *[]string `json:"selectedItems"`
	Text            *string   `json:"text"`
	BackgroundColor *string   `json:"backgroundColor"`
	FontSize        *float64  `json:"fontSize"`
	Rules           *[]string `json:"rules"`
}

// mergeData applies the partial on top of the existing data. Content, when
// present, is merged one level deep against the existing variant.
func mergeData(d Data, p PartialData) Data {
	if p.X != nil {
		d.X = *p.X
	}
	if p.Y != nil {
		d.Y = *p.Y
	}
	if p.Width != nil {
		d.Width = *p.Width
	}
	if p.Height != nil {
		d.Height = *p.Height
	}
	if p.ZIndex != nil {
		d.ZIndex = *p.ZIndex
	}
	if p.Content != nil && d.Content != nil {
		d.Content = mergeContent(d.Content, *p.Content)
	}
	return d
}

// mergeContent handles every variant exhaustively. The discriminator stays
// whatever the existing content is, regardless of what the partial claims.
func mergeContent(c Content, p PartialContent) Content {
	switch existing := c.(type) {
	case TechStackContent:
		if p.SelectedItems != nil {
			existing.SelectedItems = cloneSlice(*p.SelectedItems)
		}
		return existing
	case PostItContent:
		if p.Text != nil {
			existing.Text = *p.Text
		}
		if p.BackgroundColor != nil {
			existing.BackgroundColor = *p.BackgroundColor
		}
		if p.FontSize != nil {
			existing.FontSize = *p.FontSize
		}
		return existing
	case GroundRuleContent:
		if p.Rules != nil {
			existing.Rules = cloneSlice(*p.Rules)
		}
		return existing
	default:
		return c
	}
}
