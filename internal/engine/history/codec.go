package history

import (
	"encoding/base64"
	"fmt"
	"math"
	"sort"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// codecVersion is written to every encoded timeline.
const codecVersion = 1

// bytesKey tags a base64-encoded []byte value inside the JSON document.
const bytesKey = "_b64"

// Encode serializes the timeline.
//
// The document holds the base snapshot, the oldest and current sequence
// numbers, a dictionary of operation identifiers, one command list per
// transaction starting with the oldest, the tags and any pending commands.
// Checkpoints other than the base one are not written; Rebuild recomputes
// them.
func (t *Timeline) Encode() ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	doc := []byte(`{}`)
	var err error
	set := func(path string, value any) {
		if err != nil {
			return
		}
		doc, err = sjson.SetBytes(doc, path, value)
	}

	base := t.checkpoints[0]
	params, perr := encodeParams(base.State.Params)
	if perr != nil {
		return nil, perr
	}

	set("version", codecVersion)
	set("oldest", t.oldest())
	set("current", t.current)
	set("base.d", base64.StdEncoding.EncodeToString(base.State.Blob))
	set("base.p", params)

	ops := newOpTable()
	redos := make([]any, len(t.transactions))
	for i, tx := range t.transactions {
		cmds, cerr := encodeCommands(tx.Commands, ops)
		if cerr != nil {
			return nil, fmt.Errorf("encode transaction %d: %w", tx.No, cerr)
		}
		redos[i] = cmds
	}
	pending, cerr := encodeCommands(t.pending.commands, ops)
	if cerr != nil {
		return nil, fmt.Errorf("encode pending commands: %w", cerr)
	}

	tags := make([]any, len(t.tags))
	for i, tag := range t.tags {
		tags[i] = map[string]any{"n": tag.Name, "r": tag.No}
	}

	set("ops", ops.names)
	set("redos", redos)
	set("tags", tags)
	if len(pending) > 0 {
		set("pending", pending)
	}
	if err != nil {
		return nil, fmt.Errorf("encode timeline: %w", err)
	}
	return doc, nil
}

// Decode rebuilds a timeline from data produced by Encode.
//
// Only the base checkpoint is restored and no target is touched. Call
// Rebuild before recording or committing on the decoded timeline. Undo,
// Redo and Seek may be used without it: the first navigation restores the
// base snapshot instead of replaying onto whatever the target holds.
func Decode(data []byte, opts ...Option) (*Timeline, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%w: invalid JSON", ErrCorrupt)
	}
	doc := gjson.ParseBytes(data)

	if v := doc.Get("version"); v.Exists() && v.Int() != codecVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrCorrupt, v.Int())
	}

	redos := doc.Get("redos")
	if !redos.IsArray() || len(redos.Array()) == 0 {
		return nil, fmt.Errorf("%w: missing transactions", ErrCorrupt)
	}

	var ops []OperationID
	for _, op := range doc.Get("ops").Array() {
		ops = append(ops, OperationID(op.String()))
	}

	oldest := int(doc.Get("oldest").Int())
	current := int(doc.Get("current").Int())

	t := newTimeline(opts)
	for i, r := range redos.Array() {
		cmds, err := decodeCommands(r, ops)
		if err != nil {
			return nil, fmt.Errorf("transaction %d: %w", oldest+i, err)
		}
		t.transactions = append(t.transactions, newTransaction(oldest+i, cmds))
	}
	if current < oldest || current > t.newest() {
		return nil, fmt.Errorf("%w: current %d outside [%d, %d]", ErrCorrupt, current, oldest, t.newest())
	}
	t.current = current
	t.detached = true

	blob, err := base64.StdEncoding.DecodeString(doc.Get("base.d").String())
	if err != nil {
		return nil, fmt.Errorf("%w: base snapshot: %w", ErrCorrupt, err)
	}
	params, err := decodeParams(doc.Get("base.p"))
	if err != nil {
		return nil, err
	}
	t.checkpoints = []*Checkpoint{{
		State:  State{Blob: blob, Params: params},
		Anchor: oldest,
	}}

	for _, r := range doc.Get("tags").Array() {
		tag := Tag{No: int(r.Get("r").Int()), Name: r.Get("n").String()}
		if tag.No < oldest || tag.No > t.newest() {
			return nil, fmt.Errorf("%w: tag %q at %d outside history", ErrCorrupt, tag.Name, tag.No)
		}
		t.tags = append(t.tags, tag)
	}
	sort.SliceStable(t.tags, func(i, j int) bool { return t.tags[i].No < t.tags[j].No })

	if p := doc.Get("pending"); p.Exists() {
		if current != t.newest() {
			return nil, fmt.Errorf("%w: pending commands behind the newest transaction", ErrCorrupt)
		}
		cmds, err := decodeCommands(p, ops)
		if err != nil {
			return nil, fmt.Errorf("pending commands: %w", err)
		}
		for _, cmd := range cmds {
			t.pending.Add(cmd)
		}
	}

	for no := oldest + 1; no <= current; no++ {
		t.cost += t.transaction(no).Cost
	}
	return t, nil
}

// Rebuild brings target to the timeline's current position: it restores
// the base snapshot, replays the whole log while taking checkpoints at the
// usual threshold, then moves back to the current position and reapplies
// pending commands. If Rebuild fails the target state is undefined and
// Rebuild may be called again.
func (t *Timeline) Rebuild(target Target) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	want := t.current
	if target == nil {
		return &OperationError{Op: "rebuild", No: want, Err: fmt.Errorf("%w: nil target", ErrPrecondition)}
	}
	fail := func(err error) error {
		t.current = want
		return &OperationError{Op: "rebuild", No: want, Err: err}
	}

	base := t.checkpoints[0]
	clear(t.checkpoints[1:])
	t.checkpoints = t.checkpoints[:1]
	if err := t.applyCheckpoint(target, base); err != nil {
		return fail(err)
	}

	for no := base.Anchor + 1; no <= t.newest(); no++ {
		tx := t.transaction(no)
		if err := tx.apply(target); err != nil {
			return fail(err)
		}
		t.current = no
		t.cost += tx.Cost
		if t.cost > t.threshold {
			cp, err := takeCheckpoint(target, no)
			if err != nil {
				return fail(err)
			}
			t.checkpoints = append(t.checkpoints, cp)
			t.cost = 0
			t.observer.OnCheckpoint(cp)
		}
	}

	if t.current != want {
		if _, err := t.resetTo(target, want); err != nil {
			return fail(err)
		}
	}

	for _, cmd := range t.pending.commands {
		if err := target.Apply(cmd); err != nil {
			return fail(fmt.Errorf("%w: pending %s: %w", ErrReplay, cmd.Op, err))
		}
	}
	return nil
}

// opTable dictionary-encodes operation identifiers.
type opTable struct {
	index map[OperationID]int
	names []string
}

func newOpTable() *opTable {
	return &opTable{
		index: make(map[OperationID]int),
		names: []string{},
	}
}

func (o *opTable) indexOf(op OperationID) int {
	if i, ok := o.index[op]; ok {
		return i
	}
	i := len(o.names)
	o.index[op] = i
	o.names = append(o.names, string(op))
	return i
}

func encodeCommands(cmds []Command, ops *opTable) ([]any, error) {
	result := make([]any, len(cmds))
	for i, cmd := range cmds {
		args := make([]any, len(cmd.Args))
		for j, arg := range cmd.Args {
			v, err := encodeValue(arg)
			if err != nil {
				return nil, fmt.Errorf("%s argument %d: %w", cmd.Op, j, err)
			}
			args[j] = v
		}
		result[i] = map[string]any{
			"f": ops.indexOf(cmd.Op),
			"a": args,
			"c": cmd.Cost,
		}
	}
	return result, nil
}

func decodeCommands(r gjson.Result, ops []OperationID) ([]Command, error) {
	if !r.IsArray() {
		return nil, fmt.Errorf("%w: command list is not an array", ErrCorrupt)
	}
	var cmds []Command
	for _, c := range r.Array() {
		f := int(c.Get("f").Int())
		if f < 0 || f >= len(ops) {
			return nil, fmt.Errorf("%w: operation index %d out of range", ErrCorrupt, f)
		}
		var args []Value
		for _, a := range c.Get("a").Array() {
			v, err := decodeValue(a)
			if err != nil {
				return nil, err
			}
			args = append(args, v)
		}
		cost := DefaultCost
		if cr := c.Get("c"); cr.Exists() {
			cost = int(cr.Int())
			if cost < 0 {
				return nil, fmt.Errorf("%w: negative cost %d", ErrCorrupt, cost)
			}
		}
		cmds = append(cmds, Command{Op: ops[f], Args: args, Cost: cost})
	}
	return cmds, nil
}

func encodeParams(params map[string]Value) (map[string]any, error) {
	result := make(map[string]any, len(params))
	for k, v := range params {
		ev, err := encodeValue(v)
		if err != nil {
			return nil, fmt.Errorf("encode parameter %q: %w", k, err)
		}
		result[k] = ev
	}
	return result, nil
}

func decodeParams(r gjson.Result) (map[string]Value, error) {
	params := make(map[string]Value)
	if !r.Exists() {
		return params, nil
	}
	if !r.IsObject() {
		return nil, fmt.Errorf("%w: snapshot parameters are not an object", ErrCorrupt)
	}
	var err error
	r.ForEach(func(k, v gjson.Result) bool {
		var dv Value
		dv, err = decodeValue(v)
		if err != nil {
			return false
		}
		params[k.String()] = dv
		return true
	})
	if err != nil {
		return nil, err
	}
	return params, nil
}

func encodeValue(v Value) (any, error) {
	switch val := v.(type) {
	case nil, bool, string,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64:
		return val, nil
	case float32:
		return encodeFloat(float64(val))
	case float64:
		return encodeFloat(val)
	case []byte:
		return map[string]any{bytesKey: base64.StdEncoding.EncodeToString(val)}, nil
	case []Value:
		out := make([]any, len(val))
		for i, item := range val {
			ev, err := encodeValue(item)
			if err != nil {
				return nil, err
			}
			out[i] = ev
		}
		return out, nil
	case map[string]Value:
		return encodeParams(val)
	default:
		return nil, fmt.Errorf("unsupported value type %T", v)
	}
}

func encodeFloat(f float64) (any, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("non-finite number %v", f)
	}
	return f, nil
}

// decodeValue maps JSON back to Value. Integral numbers decode as int64.
func decodeValue(r gjson.Result) (Value, error) {
	switch r.Type {
	case gjson.Null:
		return nil, nil
	case gjson.False:
		return false, nil
	case gjson.True:
		return true, nil
	case gjson.String:
		return r.String(), nil
	case gjson.Number:
		if r.Num == math.Trunc(r.Num) && math.Abs(r.Num) < 1<<53 {
			return r.Int(), nil
		}
		return r.Float(), nil
	}

	if r.IsArray() {
		var out []Value
		for _, item := range r.Array() {
			v, err := decodeValue(item)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		if out == nil {
			out = []Value{}
		}
		return out, nil
	}

	if b := r.Get(bytesKey); b.Exists() && b.Type == gjson.String {
		data, err := base64.StdEncoding.DecodeString(b.String())
		if err != nil {
			return nil, fmt.Errorf("%w: byte value: %w", ErrCorrupt, err)
		}
		return data, nil
	}
	return decodeParams(r)
}
