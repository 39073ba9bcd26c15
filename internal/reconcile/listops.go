package reconcile

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/estatepress/sitesync/internal/types"
)

// List operations on a top-level array field.
const (
	ListOpAdd       = "add"       // append item at the end
	ListOpUpdate    = "update"    // replace item at index
	ListOpRemove    = "remove"    // remove item at index
	ListOpDuplicate = "duplicate" // insert a copy right after index
)

// ListEdit is a structured edit of one array field (service items, about
// paragraphs, property features, image lists) that leaves every sibling
// element untouched. Item accepts a single object or an array; add appends
// them all, update takes exactly one.
type ListEdit struct {
	Field  string                          `json:"field"`
	Op     string                          `json:"op"`
	Index  int                             `json:"index,omitempty"`
	Item   types.FlexList[json.RawMessage] `json:"item,omitempty"`
	Suffix string                          `json:"suffix,omitempty"` // appended to the copy's title/name on duplicate
}

// EditList loads the entity, applies the edit to the named array field and
// saves the result through the normal four-step sequence.
func (r *Reconciler) EditList(ctx context.Context, req SaveRequest, edit ListEdit) (*SaveResult, error) {
	prev := r.LoadInitial(ctx, req.EntityType, req.EntityID)

	patched, err := applyListEdit(prev.Payload, edit)
	if err != nil {
		return nil, err
	}

	if req.ChangeDescription == "" {
		req.ChangeDescription = fmt.Sprintf("%s item in %s", edit.Op, edit.Field)
	}
	req.Payload = patched

	return r.Save(ctx, req)
}

func applyListEdit(payload json.RawMessage, edit ListEdit) (json.RawMessage, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(payload, &doc); err != nil {
		return nil, fmt.Errorf("entity payload is not an object: %w", err)
	}

	var list []json.RawMessage
	if raw, ok := doc[edit.Field]; ok {
		if err := json.Unmarshal(raw, &list); err != nil {
			return nil, fmt.Errorf("field %q is not an array", edit.Field)
		}
	}

	switch edit.Op {
	case ListOpAdd:
		if len(edit.Item) == 0 {
			return nil, fmt.Errorf("add requires an item")
		}
		list = append(list, edit.Item.Slice()...)

	case ListOpUpdate:
		if err := checkIndex(edit.Index, len(list)); err != nil {
			return nil, err
		}
		if len(edit.Item) != 1 {
			return nil, fmt.Errorf("update requires exactly one item")
		}
		list[edit.Index] = edit.Item[0]

	case ListOpRemove:
		if err := checkIndex(edit.Index, len(list)); err != nil {
			return nil, err
		}
		list = append(list[:edit.Index], list[edit.Index+1:]...)

	case ListOpDuplicate:
		if err := checkIndex(edit.Index, len(list)); err != nil {
			return nil, err
		}
		copied := duplicateItem(list[edit.Index], edit.Suffix)
		list = append(list, nil)
		copy(list[edit.Index+2:], list[edit.Index+1:])
		list[edit.Index+1] = copied

	default:
		return nil, fmt.Errorf("unknown list operation %q", edit.Op)
	}

	encoded, err := json.Marshal(list)
	if err != nil {
		return nil, err
	}
	doc[edit.Field] = encoded

	return json.Marshal(doc)
}

func checkIndex(i, length int) error {
	if i < 0 || i >= length {
		return fmt.Errorf("index %d out of range (%d items)", i, length)
	}
	return nil
}

// duplicateItem clones a list item; when the item is an object with a
// string title or name, the suffix is appended to distinguish the copy.
func duplicateItem(item json.RawMessage, suffix string) json.RawMessage {
	if suffix == "" {
		return item
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(item, &obj); err != nil {
		return item
	}

	for _, field := range []string{"title", "name"} {
		raw, ok := obj[field]
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			continue
		}
		renamed, err := json.Marshal(s + suffix)
		if err != nil {
			continue
		}
		obj[field] = renamed
		break
	}

	out, err := json.Marshal(obj)
	if err != nil {
		return item
	}
	return out
}
