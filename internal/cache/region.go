package cache

import (
	"fmt"

	"github.com/skelly-dev/rubyindex/internal/entry"
	"github.com/skelly-dev/rubyindex/internal/index"
)

const flagSkipPrefixTree byte = 1 << 0

// regionEncoder writes one file's entries. Strings are interned into a per-region table so a
// region can be decoded or replaced on its own.
type regionEncoder struct {
	body    writer
	lookup  map[string]uint64
	strings []string
}

func encodeRegion(records []index.Record) ([]byte, error) {
	enc := &regionEncoder{lookup: make(map[string]uint64)}
	for _, rec := range records {
		if err := enc.record(rec); err != nil {
			return nil, err
		}
	}

	var out writer
	out.int(len(enc.strings))
	for _, s := range enc.strings {
		out.string(s)
	}
	out.int(len(records))
	out.buf = append(out.buf, enc.body.buf...)
	return out.buf, nil
}

func (enc *regionEncoder) ref(s string) {
	id, ok := enc.lookup[s]
	if !ok {
		id = uint64(len(enc.strings))
		enc.lookup[s] = id
		enc.strings = append(enc.strings, s)
	}
	enc.body.uvarint(id)
}

func (enc *regionEncoder) refs(values []string) {
	enc.body.int(len(values))
	for _, v := range values {
		enc.ref(v)
	}
}

func (enc *regionEncoder) location(loc entry.Location) {
	enc.body.int(loc.StartLine)
	enc.body.int(loc.EndLine)
	enc.body.int(loc.StartColumn)
	enc.body.int(loc.EndColumn)
}

func (enc *regionEncoder) record(rec index.Record) error {
	e := rec.Entry
	if !e.Kind.Valid() {
		return fmt.Errorf("encode %q: unknown entry kind %d", e.Name, e.Kind)
	}

	var flags byte
	if rec.SkipPrefixTree {
		flags |= flagSkipPrefixTree
	}
	enc.body.uvarint(rec.Seq)
	enc.body.byte(flags)
	enc.body.byte(byte(e.Kind))
	enc.ref(e.Name)
	enc.location(e.Location)
	enc.location(e.NameLocation)
	enc.refs(e.Comments)
	enc.body.byte(byte(e.Visibility))

	switch e.Kind {
	case entry.KindModule, entry.KindClass, entry.KindSingletonClass:
		enc.refs(e.Nesting)
		enc.refs(e.IncludedModules)
		enc.refs(e.PrependedModules)
		enc.refs(e.ExtendedModules)
		if e.Kind == entry.KindClass {
			enc.ref(e.ParentClass)
		}
	case entry.KindConstant:
	case entry.KindAccessor, entry.KindInstanceVariable:
		enc.ref(e.Owner)
	case entry.KindInstanceMethod, entry.KindSingletonMethod:
		enc.ref(e.Owner)
		enc.body.int(len(e.Signatures))
		for _, sig := range e.Signatures {
			enc.body.int(len(sig.Parameters))
			for _, param := range sig.Parameters {
				if !param.Kind.Valid() {
					return fmt.Errorf("encode %q: unknown parameter kind %d", e.Name, param.Kind)
				}
				enc.body.byte(byte(param.Kind))
				enc.ref(param.Name)
			}
		}
	case entry.KindUnresolvedAlias:
		enc.ref(e.Target)
		enc.refs(e.Nesting)
	case entry.KindAlias:
		enc.ref(e.Target)
	}
	return nil
}

type regionDecoder struct {
	r       reader
	path    string
	strings []string
}

func decodeRegion(data []byte, path string) ([]index.Record, error) {
	dec := &regionDecoder{r: reader{data: data}, path: path}

	n, err := dec.r.count()
	if err != nil {
		return nil, err
	}
	dec.strings = make([]string, n)
	for i := range dec.strings {
		if dec.strings[i], err = dec.r.string(); err != nil {
			return nil, err
		}
	}

	count, err := dec.r.count()
	if err != nil {
		return nil, err
	}
	records := make([]index.Record, 0, count)
	for i := 0; i < count; i++ {
		rec, err := dec.record()
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if dec.r.remaining() != 0 {
		return nil, corrupt(ReasonTruncated, "%d trailing bytes in region %q", dec.r.remaining(), path)
	}
	return records, nil
}

func (dec *regionDecoder) ref() (string, error) {
	id, err := dec.r.uvarint()
	if err != nil {
		return "", err
	}
	if id >= uint64(len(dec.strings)) {
		return "", corrupt(ReasonTruncated, "string reference %d outside table of %d in %q", id, len(dec.strings), dec.path)
	}
	return dec.strings[id], nil
}

func (dec *regionDecoder) refs() ([]string, error) {
	n, err := dec.r.count()
	if err != nil || n == 0 {
		return nil, err
	}
	out := make([]string, n)
	for i := range out {
		if out[i], err = dec.ref(); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (dec *regionDecoder) location() (entry.Location, error) {
	var coords [4]int
	for i := range coords {
		v, err := dec.r.int()
		if err != nil {
			return entry.Location{}, err
		}
		coords[i] = v
	}
	return entry.NewLocation(coords[0], coords[1], coords[2], coords[3]), nil
}

func (dec *regionDecoder) record() (index.Record, error) {
	var rec index.Record
	seq, err := dec.r.uvarint()
	if err != nil {
		return rec, err
	}
	flags, err := dec.r.byte()
	if err != nil {
		return rec, err
	}
	tag, err := dec.r.byte()
	if err != nil {
		return rec, err
	}
	kind := entry.Kind(tag)
	if !kind.Valid() {
		return rec, corrupt(ReasonUnknownTag, "entry kind %d in %q", tag, dec.path)
	}

	e := &entry.Entry{Kind: kind, FilePath: dec.path}
	if e.Name, err = dec.ref(); err != nil {
		return rec, err
	}
	if e.Location, err = dec.location(); err != nil {
		return rec, err
	}
	if e.NameLocation, err = dec.location(); err != nil {
		return rec, err
	}
	if e.Comments, err = dec.refs(); err != nil {
		return rec, err
	}
	visibility, err := dec.r.byte()
	if err != nil {
		return rec, err
	}
	if visibility > byte(entry.Protected) {
		return rec, corrupt(ReasonUnknownTag, "visibility %d in %q", visibility, dec.path)
	}
	e.Visibility = entry.Visibility(visibility)

	switch kind {
	case entry.KindModule, entry.KindClass, entry.KindSingletonClass:
		if e.Nesting, err = dec.refs(); err != nil {
			return rec, err
		}
		if e.IncludedModules, err = dec.refs(); err != nil {
			return rec, err
		}
		if e.PrependedModules, err = dec.refs(); err != nil {
			return rec, err
		}
		if e.ExtendedModules, err = dec.refs(); err != nil {
			return rec, err
		}
		if kind == entry.KindClass {
			if e.ParentClass, err = dec.ref(); err != nil {
				return rec, err
			}
		}
	case entry.KindConstant:
	case entry.KindAccessor, entry.KindInstanceVariable:
		if e.Owner, err = dec.ref(); err != nil {
			return rec, err
		}
	case entry.KindInstanceMethod, entry.KindSingletonMethod:
		if e.Owner, err = dec.ref(); err != nil {
			return rec, err
		}
		if e.Signatures, err = dec.signatures(); err != nil {
			return rec, err
		}
	case entry.KindUnresolvedAlias:
		if e.Target, err = dec.ref(); err != nil {
			return rec, err
		}
		if e.Nesting, err = dec.refs(); err != nil {
			return rec, err
		}
	case entry.KindAlias:
		if e.Target, err = dec.ref(); err != nil {
			return rec, err
		}
	}

	rec.Entry = e
	rec.Seq = seq
	rec.SkipPrefixTree = flags&flagSkipPrefixTree != 0
	return rec, nil
}

func (dec *regionDecoder) signatures() ([]entry.Signature, error) {
	n, err := dec.r.count()
	if err != nil || n == 0 {
		return nil, err
	}
	sigs := make([]entry.Signature, n)
	for i := range sigs {
		count, err := dec.r.count()
		if err != nil {
			return nil, err
		}
		if count == 0 {
			continue
		}
		params := make([]entry.Parameter, count)
		for j := range params {
			tag, err := dec.r.byte()
			if err != nil {
				return nil, err
			}
			kind := entry.ParameterKind(tag)
			if !kind.Valid() {
				return nil, corrupt(ReasonUnknownTag, "parameter kind %d in %q", tag, dec.path)
			}
			name, err := dec.ref()
			if err != nil {
				return nil, err
			}
			params[j] = entry.Parameter{Kind: kind, Name: name}
		}
		sigs[i].Parameters = params
	}
	return sigs, nil
}
