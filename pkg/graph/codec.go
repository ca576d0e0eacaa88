package graph

import (
	"encoding/json"
	"fmt"
)

// MarshalPayload encodes p as a flat JSON object tagged with its "tipo".
func MarshalPayload(p Payload) ([]byte, error) {
	if p == nil {
		p = Empty{}
	}

	raw, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %q payload: %w", KindOf(p), err)
	}

	fields := make(map[string]json.RawMessage)
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("failed to flatten %q payload: %w", KindOf(p), err)
	}
	if k := p.Kind(); k != KindNone {
		tag, _ := json.Marshal(k)
		fields["tipo"] = tag
	}

	return json.Marshal(fields)
}

// UnmarshalPayload decodes a JSON object produced by MarshalPayload, choosing
// the concrete type from its "tipo" field. Objects without a known "tipo"
// decode as Empty.
func UnmarshalPayload(data []byte) (Payload, error) {
	var head struct {
		Tipo Kind `json:"tipo"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("failed to read payload kind: %w", err)
	}

	var p Payload
	var err error
	switch head.Tipo {
	case KindSystem:
		p = System{}
	case KindCategory:
		var c Category
		err = json.Unmarshal(data, &c)
		p = c
	case KindRegion:
		var r Region
		err = json.Unmarshal(data, &r)
		p = r
	case KindUser:
		var u User
		err = json.Unmarshal(data, &u)
		p = u
	case KindAlert:
		var a Alert
		err = json.Unmarshal(data, &a)
		p = a
	default:
		p = Empty{}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode %q payload: %w", head.Tipo, err)
	}
	return p, nil
}

// MarshalJSON renders the payload with its "tipo" tag.
func (m Match) MarshalJSON() ([]byte, error) {
	payload, err := MarshalPayload(m.Payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(struct {
		ID      string          `json:"id"`
		Payload json.RawMessage `json:"payload"`
	}{ID: m.ID, Payload: payload})
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (m *Match) UnmarshalJSON(data []byte) error {
	var wire struct {
		ID      string          `json:"id"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	m.ID = wire.ID
	if len(wire.Payload) == 0 {
		m.Payload = Empty{}
		return nil
	}
	p, err := UnmarshalPayload(wire.Payload)
	if err != nil {
		return err
	}
	m.Payload = p
	return nil
}

// ExportNode is one node in an Export.
type ExportNode struct {
	ID        string          `json:"id"`
	Kind      Kind            `json:"tipo"`
	Payload   json.RawMessage `json:"payload"`
	Neighbors []string        `json:"neighbors"`
}

// Export is a serialisable view of the whole graph in node insertion order.
type Export struct {
	Nodes     []ExportNode `json:"nodes"`
	NodeCount int          `json:"node_count"`
	EdgeCount int          `json:"edge_count"`
}

// Export captures the current graph.
func (g *Graph) Export() (Export, error) {
	out := Export{
		Nodes:     make([]ExportNode, 0, len(g.order)),
		NodeCount: g.NodeCount(),
		EdgeCount: g.EdgeCount(),
	}
	for _, id := range g.order {
		p := g.nodes[id]
		raw, err := MarshalPayload(p)
		if err != nil {
			return Export{}, err
		}
		out.Nodes = append(out.Nodes, ExportNode{
			ID:        id,
			Kind:      KindOf(p),
			Payload:   raw,
			Neighbors: g.GetNeighbors(id),
		})
	}
	return out, nil
}
