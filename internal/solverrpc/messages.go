package solverrpc

import (
	"fmt"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/danielpatrickdp/optinet/internal/hydraulic"
	"github.com/danielpatrickdp/optinet/internal/network"
)

// #region request-encoding
// EncodeRequest converts a simulation request to its wire form.
func EncodeRequest(req hydraulic.Request) (*structpb.Struct, error) {
	nodes := make([]any, len(req.Nodes))
	for i, n := range req.Nodes {
		nodes[i] = map[string]any{
			"id":        n.ID,
			"kind":      string(n.Kind),
			"demand":    n.Demand,
			"elevation": n.Elevation,
		}
	}
	pipes := make([]any, len(req.Pipes))
	for i, p := range req.Pipes {
		pipes[i] = map[string]any{
			"id":        p.ID,
			"from":      p.From,
			"to":        p.To,
			"length":    p.Length,
			"roughness": p.Roughness,
			"diameter":  p.Diameter,
		}
	}
	s, err := structpb.NewStruct(map[string]any{
		"network": req.Network,
		"nodes":   nodes,
		"pipes":   pipes,
	})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	return s, nil
}

// DecodeRequest is the inverse of EncodeRequest.
func DecodeRequest(s *structpb.Struct) (hydraulic.Request, error) {
	f := s.GetFields()
	req := hydraulic.Request{Network: f["network"].GetStringValue()}

	nodes, ok := f["nodes"]
	if !ok {
		return hydraulic.Request{}, fmt.Errorf("decode request: missing nodes")
	}
	for i, v := range nodes.GetListValue().GetValues() {
		n := v.GetStructValue().GetFields()
		if n == nil {
			return hydraulic.Request{}, fmt.Errorf("decode request: node %d is not an object", i)
		}
		req.Nodes = append(req.Nodes, hydraulic.NodeSpec{
			ID:        n["id"].GetStringValue(),
			Kind:      network.NodeKind(n["kind"].GetStringValue()),
			Demand:    n["demand"].GetNumberValue(),
			Elevation: n["elevation"].GetNumberValue(),
		})
	}

	pipes, ok := f["pipes"]
	if !ok {
		return hydraulic.Request{}, fmt.Errorf("decode request: missing pipes")
	}
	for i, v := range pipes.GetListValue().GetValues() {
		p := v.GetStructValue().GetFields()
		if p == nil {
			return hydraulic.Request{}, fmt.Errorf("decode request: pipe %d is not an object", i)
		}
		req.Pipes = append(req.Pipes, hydraulic.PipeSpec{
			ID:        p["id"].GetStringValue(),
			From:      p["from"].GetStringValue(),
			To:        p["to"].GetStringValue(),
			Length:    p["length"].GetNumberValue(),
			Roughness: p["roughness"].GetNumberValue(),
			Diameter:  p["diameter"].GetNumberValue(),
		})
	}
	return req, nil
}

// #endregion request-encoding

// #region result-encoding
// EncodeResult converts a simulation outcome to its wire form.
// converged=false carries the solver's message instead of values.
func EncodeResult(res hydraulic.Result, converged bool, message string) (*structpb.Struct, error) {
	s, err := structpb.NewStruct(map[string]any{
		"converged":  converged,
		"message":    message,
		"pressures":  numberMap(res.Pressures),
		"velocities": numberMap(res.Velocities),
		"flows":      numberMap(res.Flows),
	})
	if err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}
	return s, nil
}

// DecodeResult reads a wire result. A non-converged result yields
// hydraulic.ErrNonConvergence.
func DecodeResult(s *structpb.Struct) (hydraulic.Result, error) {
	f := s.GetFields()
	if !f["converged"].GetBoolValue() {
		msg := f["message"].GetStringValue()
		if msg == "" {
			msg = "remote solver reported no convergence"
		}
		return hydraulic.Result{}, fmt.Errorf("%w: %s", hydraulic.ErrNonConvergence, msg)
	}
	return hydraulic.Result{
		Pressures:  floatMap(f["pressures"]),
		Velocities: floatMap(f["velocities"]),
		Flows:      floatMap(f["flows"]),
	}, nil
}

// #endregion result-encoding

// #region helpers
func numberMap(m map[string]float64) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func floatMap(v *structpb.Value) map[string]float64 {
	fields := v.GetStructValue().GetFields()
	out := make(map[string]float64, len(fields))
	for k, f := range fields {
		out[k] = f.GetNumberValue()
	}
	return out
}

// #endregion helpers
