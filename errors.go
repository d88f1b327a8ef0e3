/*
Copyright © 2026 the UnitOverlap authors.
This file is part of UnitOverlap.

UnitOverlap is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

UnitOverlap is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with UnitOverlap.  If not, see <http://www.gnu.org/licenses/>.
*/

package overlap

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
)

// Errors that scope a failure to a single dataframe, class, or class pair.
// None of them stops a batch.
var (
	// ErrMissingAttribute means the classification field is not part of
	// a collection's schema.
	ErrMissingAttribute = errors.New("overlap: missing classification attribute")

	// ErrEmptyPartition means a partition holds no points, so it has no
	// bounding geometry.
	ErrEmptyPartition = errors.New("overlap: empty partition")

	// ErrIngestFailure means a source table could not be converted into
	// points.
	ErrIngestFailure = errors.New("overlap: ingest failure")

	// ErrStoreLookup means a partition or bounding geometry could not be
	// retrieved from the store.
	ErrStoreLookup = errors.New("overlap: store lookup failure")

	// ErrNotFound is returned by stores for keys they do not hold.
	ErrNotFound = errors.New("overlap: not found")

	// ErrClassCollision means distinct attribute values of a collection
	// render as the same ClassID.
	ErrClassCollision = errors.New("overlap: class collision")
)

// SkipKind classifies a skipped unit of work.
type SkipKind int

// Kinds of skipped work.
const (
	MissingAttribute SkipKind = iota + 1
	EmptyPartition
	IngestFailure
	StoreLookupFailure
	ClassCollision
)

func (k SkipKind) String() string {
	switch k {
	case MissingAttribute:
		return "MissingAttribute"
	case EmptyPartition:
		return "EmptyPartition"
	case IngestFailure:
		return "IngestFailure"
	case StoreLookupFailure:
		return "StoreLookupFailure"
	case ClassCollision:
		return "ClassCollision"
	default:
		return fmt.Sprintf("SkipKind(%d)", int(k))
	}
}

// Skip records work that was left out of the results, with the keys a
// reader needs to audit the output table for completeness.
type Skip struct {
	Kind      SkipKind
	Dataframe DataframeID
	ClassA    ClassID
	ClassB    ClassID
	Source    string
	Err       error
}

// Fields returns the identifying keys of s for structured logging.
func (s Skip) Fields() logrus.Fields {
	f := logrus.Fields{"skip": s.Kind.String()}
	if s.Dataframe != "" {
		f["dataframe"] = string(s.Dataframe)
	}
	if s.ClassA != "" {
		f["class1"] = string(s.ClassA)
	}
	if s.ClassB != "" {
		f["class2"] = string(s.ClassB)
	}
	if s.Source != "" {
		f["source"] = s.Source
	}
	if s.Err != nil {
		f["error"] = s.Err.Error()
	}
	return f
}

func (s Skip) String() string {
	var b strings.Builder
	b.WriteString(s.Kind.String())
	if s.Dataframe != "" {
		fmt.Fprintf(&b, " dataframe=%s", s.Dataframe)
	}
	if s.ClassA != "" {
		fmt.Fprintf(&b, " class1=%s", s.ClassA)
	}
	if s.ClassB != "" {
		fmt.Fprintf(&b, " class2=%s", s.ClassB)
	}
	if s.Source != "" {
		fmt.Fprintf(&b, " source=%s", s.Source)
	}
	if s.Err != nil {
		fmt.Fprintf(&b, ": %v", s.Err)
	}
	return b.String()
}

// skipKindOf maps an error onto the kind of skip it causes.
func skipKindOf(err error) SkipKind {
	switch {
	case errors.Is(err, ErrMissingAttribute):
		return MissingAttribute
	case errors.Is(err, ErrEmptyPartition):
		return EmptyPartition
	case errors.Is(err, ErrIngestFailure):
		return IngestFailure
	case errors.Is(err, ErrClassCollision):
		return ClassCollision
	default:
		return StoreLookupFailure
	}
}
