package metadata

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/menmos/menmos/pkg/bitvec"
	"github.com/menmos/menmos/pkg/kv"
	"github.com/menmos/menmos/pkg/types"
)

const (
	bucketInfo = "meta.info"

	bucketTags    = "meta.tags"
	bucketKV      = "meta.kv"
	bucketKeys    = "meta.keys"
	bucketParents = "meta.parents"
	bucketOwners  = "meta.owners"
	bucketAll     = "meta.all"

	allEntryKey = "entries"
)

// Store is the directory's inverted index: a forward BlobInfo map plus
// five BitvecTree-backed dimensions (tags, kv pairs, key presence,
// parents, owners) and the aggregate "any dimension set" bitvector that
// backs load_all.
//
// Every Put re-derives the full set of index changes by diffing the
// new BlobInfo against whatever was previously stored under the same
// doc index, so indexing an update never leaves a stale bit behind.
type Store struct {
	db kv.Store

	tags    *bitvec.Tree
	kvIdx   *bitvec.Tree
	keys    *bitvec.Tree
	parents *bitvec.Tree
	owners  *bitvec.Tree
	all     *bitvec.Tree
}

// Open returns a Store backed by db.
func Open(db kv.Store) *Store {
	return &Store{
		db:      db,
		tags:    bitvec.New(bucketTags),
		kvIdx:   bitvec.New(bucketKV),
		keys:    bitvec.New(bucketKeys),
		parents: bitvec.New(bucketParents),
		owners:  bitvec.New(bucketOwners),
		all:     bitvec.New(bucketAll),
	}
}

func infoKey(docIdx uint32) []byte {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, docIdx)
	return buf
}

func kvCompositeKey(field string, v types.FieldValue) string {
	return field + "\x00" + string(v.Encode())
}

func splitKVCompositeKey(key string) (field string, v types.FieldValue, err error) {
	for i := 0; i < len(key); i++ {
		if key[i] == 0 {
			fv, derr := types.DecodeFieldValue([]byte(key[i+1:]))
			if derr != nil {
				return "", types.FieldValue{}, derr
			}
			return key[:i], fv, nil
		}
	}
	return "", types.FieldValue{}, fmt.Errorf("metadata: malformed kv composite key %q", key)
}

// Get returns the BlobInfo stored under docIdx, or nil if none exists.
func (s *Store) Get(docIdx uint32) (*types.BlobInfo, error) {
	var info *types.BlobInfo
	err := s.db.View(func(tx kv.Tx) error {
		raw := tx.Bucket(bucketInfo).Get(infoKey(docIdx))
		if raw == nil {
			return nil
		}
		info = &types.BlobInfo{}
		return json.Unmarshal(raw, info)
	})
	if err != nil {
		return nil, fmt.Errorf("metadata: get %d: %w", docIdx, err)
	}
	return info, nil
}

// sortedSet returns the distinct elements of items in ascending order,
// so diffing two snapshots of the same logical set is independent of
// insertion order.
func sortedSet(items []string) []string {
	set := make(map[string]struct{}, len(items))
	for _, it := range items {
		set[it] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for it := range set {
		out = append(out, it)
	}
	sort.Strings(out)
	return out
}

func diffStrings(oldItems, newItems []string) (added, removed []string) {
	oldSet := make(map[string]struct{}, len(oldItems))
	for _, s := range oldItems {
		oldSet[s] = struct{}{}
	}
	newSet := make(map[string]struct{}, len(newItems))
	for _, s := range newItems {
		newSet[s] = struct{}{}
	}
	for _, s := range newItems {
		if _, ok := oldSet[s]; !ok {
			added = append(added, s)
		}
	}
	for _, s := range oldItems {
		if _, ok := newSet[s]; !ok {
			removed = append(removed, s)
		}
	}
	return added, removed
}

// sortedFieldKeys returns a BlobInfo's field names in ascending order.
func sortedFieldKeys(fields map[string]types.FieldValue) []string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Put indexes info under docIdx, diffing against whatever BlobInfo was
// previously stored there. Passing a nil info is equivalent to delete:
// every previously-set bit is cleared and the forward entry removed.
func (s *Store) Put(docIdx uint32, info *types.BlobInfo) error {
	return s.db.Update(func(tx kv.Tx) error {
		var prev *types.BlobInfo
		if raw := tx.Bucket(bucketInfo).Get(infoKey(docIdx)); raw != nil {
			prev = &types.BlobInfo{}
			if err := json.Unmarshal(raw, prev); err != nil {
				return fmt.Errorf("metadata: decode previous info: %w", err)
			}
		}

		var prevTags, newTags []string
		var prevOwner, newOwner string
		var prevParents, newParents []string
		prevFields := map[string]types.FieldValue{}
		newFields := map[string]types.FieldValue{}

		if prev != nil {
			prevTags = sortedSet(prev.Tags)
			prevOwner = prev.Owner
			prevParents = sortedSet(prev.Parents)
			prevFields = prev.Fields
		}
		if info != nil {
			newTags = sortedSet(info.Tags)
			newOwner = info.Owner
			newParents = sortedSet(info.Parents)
			newFields = info.Fields
		}

		addedTags, removedTags := diffStrings(prevTags, newTags)
		for _, t := range removedTags {
			if err := s.tags.ClearBit(tx, t, docIdx); err != nil {
				return err
			}
		}
		for _, t := range addedTags {
			if err := s.tags.Insert(tx, t, docIdx); err != nil {
				return err
			}
		}

		addedParents, removedParents := diffStrings(prevParents, newParents)
		for _, p := range removedParents {
			if err := s.parents.ClearBit(tx, p, docIdx); err != nil {
				return err
			}
		}
		for _, p := range addedParents {
			if err := s.parents.Insert(tx, p, docIdx); err != nil {
				return err
			}
		}

		if prevOwner != newOwner {
			if prevOwner != "" {
				if err := s.owners.ClearBit(tx, prevOwner, docIdx); err != nil {
					return err
				}
			}
			if newOwner != "" {
				if err := s.owners.Insert(tx, newOwner, docIdx); err != nil {
					return err
				}
			}
		}

		prevFieldKeys := sortedFieldKeys(prevFields)
		newFieldKeys := sortedFieldKeys(newFields)
		addedKeys, removedKeys := diffStrings(prevFieldKeys, newFieldKeys)

		for _, k := range prevFieldKeys {
			newVal, stillPresent := newFields[k]
			if stillPresent && newVal.Equal(prevFields[k]) {
				continue
			}
			if err := s.kvIdx.ClearBit(tx, kvCompositeKey(k, prevFields[k]), docIdx); err != nil {
				return err
			}
		}
		for _, k := range newFieldKeys {
			oldVal, wasPresent := prevFields[k]
			if wasPresent && oldVal.Equal(newFields[k]) {
				continue
			}
			if err := s.kvIdx.Insert(tx, kvCompositeKey(k, newFields[k]), docIdx); err != nil {
				return err
			}
		}

		for _, k := range removedKeys {
			if err := s.keys.ClearBit(tx, k, docIdx); err != nil {
				return err
			}
		}
		for _, k := range addedKeys {
			if err := s.keys.Insert(tx, k, docIdx); err != nil {
				return err
			}
		}

		if info == nil {
			if err := s.all.RemoveBit(tx, docIdx); err != nil {
				return err
			}
			if err := tx.Bucket(bucketInfo).Delete(infoKey(docIdx)); err != nil {
				return err
			}
			return nil
		}

		if len(newTags) == 0 && len(newFieldKeys) == 0 && newOwner == "" {
			if err := s.all.RemoveBit(tx, docIdx); err != nil {
				return err
			}
		} else if err := s.all.Insert(tx, allEntryKey, docIdx); err != nil {
			return err
		}

		data, err := json.Marshal(info)
		if err != nil {
			return fmt.Errorf("metadata: encode info: %w", err)
		}
		return tx.Bucket(bucketInfo).Put(infoKey(docIdx), data)
	})
}

// Delete removes the BlobInfo and every index entry for docIdx.
func (s *Store) Delete(docIdx uint32) error {
	return s.Put(docIdx, nil)
}

func (s *Store) view(fn func(tx kv.Tx) error) error {
	return s.db.View(fn)
}

// LoadTag returns the bitvector of doc indices tagged t.
func (s *Store) LoadTag(t string) (*bitvec.Bitvector, error) {
	var v *bitvec.Bitvector
	err := s.view(func(tx kv.Tx) error {
		var err error
		v, err = s.tags.Load(tx, t)
		return err
	})
	return v, err
}

// LoadKV returns the bitvector of doc indices with field k set to v.
func (s *Store) LoadKV(k string, v types.FieldValue) (*bitvec.Bitvector, error) {
	var out *bitvec.Bitvector
	err := s.view(func(tx kv.Tx) error {
		var err error
		out, err = s.kvIdx.Load(tx, kvCompositeKey(k, v))
		return err
	})
	return out, err
}

// LoadKey returns the bitvector of doc indices that have field k set,
// regardless of its value.
func (s *Store) LoadKey(k string) (*bitvec.Bitvector, error) {
	var v *bitvec.Bitvector
	err := s.view(func(tx kv.Tx) error {
		var err error
		v, err = s.keys.Load(tx, k)
		return err
	})
	return v, err
}

// LoadChildren returns the bitvector of doc indices whose parents
// include parentID.
func (s *Store) LoadChildren(parentID string) (*bitvec.Bitvector, error) {
	var v *bitvec.Bitvector
	err := s.view(func(tx kv.Tx) error {
		var err error
		v, err = s.parents.Load(tx, parentID)
		return err
	})
	return v, err
}

// LoadOwner returns the bitvector of doc indices owned by u.
func (s *Store) LoadOwner(u string) (*bitvec.Bitvector, error) {
	var v *bitvec.Bitvector
	err := s.view(func(tx kv.Tx) error {
		var err error
		v, err = s.owners.Load(tx, u)
		return err
	})
	return v, err
}

// LoadAll returns the bitvector of every doc index currently indexed
// under any tag, kv pair, key presence, or owner dimension.
func (s *Store) LoadAll() (*bitvec.Bitvector, error) {
	var v *bitvec.Bitvector
	err := s.view(func(tx kv.Tx) error {
		var err error
		v, err = s.all.Load(tx, allEntryKey)
		return err
	})
	return v, err
}

// ListTags returns, for every known tag, the number of doc indices set
// in both the tag's bitvector and mask. A nil mask defaults to
// LoadAll(). Tags with a zero resulting count are omitted.
func (s *Store) ListTags(mask *bitvec.Bitvector) (map[string]uint64, error) {
	result := make(map[string]uint64)

	err := s.view(func(tx kv.Tx) error {
		effectiveMask := mask
		if effectiveMask == nil {
			var err error
			effectiveMask, err = s.all.Load(tx, allEntryKey)
			if err != nil {
				return err
			}
		}

		bucket := tx.Bucket(bucketTags)
		return bucket.ForEach(func(k, _ []byte) error {
			tag := string(k)
			if tag == "" {
				return nil // reserved aggregate key
			}
			v, err := s.tags.Load(tx, tag)
			if err != nil {
				return err
			}
			n := intersectionCardinality(v, effectiveMask)
			if n > 0 {
				result[tag] = n
			}
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("metadata: list tags: %w", err)
	}
	return result, nil
}

// ListFields returns, for every known (field, value) pair whose field
// name matches keyFilter (all fields, if keyFilter is empty), the
// number of doc indices set in both that pair's bitvector and mask. A
// nil mask defaults to LoadAll().
func (s *Store) ListFields(keyFilter string, mask *bitvec.Bitvector) (map[string]map[string]uint64, error) {
	result := make(map[string]map[string]uint64)

	err := s.view(func(tx kv.Tx) error {
		effectiveMask := mask
		if effectiveMask == nil {
			var err error
			effectiveMask, err = s.all.Load(tx, allEntryKey)
			if err != nil {
				return err
			}
		}

		bucket := tx.Bucket(bucketKV)
		return bucket.ForEach(func(k, _ []byte) error {
			key := string(k)
			if key == "" {
				return nil // reserved aggregate key
			}
			field, value, err := splitKVCompositeKey(key)
			if err != nil {
				return err
			}
			if keyFilter != "" && field != keyFilter {
				return nil
			}

			v, err := s.kvIdx.Load(tx, key)
			if err != nil {
				return err
			}
			n := intersectionCardinality(v, effectiveMask)
			if n == 0 {
				return nil
			}

			byValue, ok := result[field]
			if !ok {
				byValue = make(map[string]uint64)
				result[field] = byValue
			}
			byValue[displayFieldValue(value)] = n
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("metadata: list fields: %w", err)
	}
	return result, nil
}

func intersectionCardinality(a, b *bitvec.Bitvector) uint64 {
	return a.And(b).Len()
}

func displayFieldValue(v types.FieldValue) string {
	switch v.Kind {
	case types.FieldString:
		return v.Str
	case types.FieldInt:
		return fmt.Sprintf("%d", v.Int)
	case types.FieldBool:
		return fmt.Sprintf("%t", v.Bool)
	default:
		return ""
	}
}

// Clear removes every indexed entry from every dimension, including
// the forward info map. Called by the directory's POST /flush route.
func (s *Store) Clear() error {
	return s.db.Update(func(tx kv.Tx) error {
		for _, t := range []*bitvec.Tree{s.tags, s.kvIdx, s.keys, s.parents, s.owners, s.all} {
			if err := t.Clear(tx); err != nil {
				return err
			}
		}

		var infoKeys [][]byte
		b := tx.Bucket(bucketInfo)
		if err := b.ForEach(func(k, _ []byte) error {
			cp := make([]byte, len(k))
			copy(cp, k)
			infoKeys = append(infoKeys, cp)
			return nil
		}); err != nil {
			return err
		}
		for _, k := range infoKeys {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
}
