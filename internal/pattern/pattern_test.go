package pattern_test

import (
	"testing"

	"github.com/jac3km4/zoltan/internal/pattern"
	"github.com/jac3km4/zoltan/internal/zigtest"
)

func TestParseValidPatterns(t *testing.T) {
	p, err := pattern.Parse("48 89 5c 24 ? e8 (target:rel)")
	zigtest.ExpectSuccess(t, err)
	zigtest.ExpectEquality(t, p.Size(), 10)
	zigtest.ExpectEquality(t, len(p.Items()), 7)
}

func TestParseRejectsInvalidInput(t *testing.T) {
	_, err := pattern.Parse("zz")
	zigtest.ExpectFailure(t, err)

	_, err = pattern.Parse("(target:nope)")
	zigtest.ExpectFailure(t, err)

	_, err = pattern.Parse("(:rel)")
	zigtest.ExpectFailure(t, err)
}

func TestGroupsReportsOffsets(t *testing.T) {
	p, err := pattern.Parse("e8 (a:rel) 90 (b:rel)")
	zigtest.ExpectSuccess(t, err)

	groups := p.Groups()
	zigtest.ExpectEquality(t, len(groups), 2)
	zigtest.ExpectEquality(t, groups[0].Name, "a")
	zigtest.ExpectEquality(t, groups[0].ByteOffset, 1)
	zigtest.ExpectEquality(t, groups[1].Name, "b")
	zigtest.ExpectEquality(t, groups[1].ByteOffset, 6)
}

func TestMatchesHonoursWildcardsAndGroups(t *testing.T) {
	p, err := pattern.Parse("48 ? 5c (x:rel)")
	zigtest.ExpectSuccess(t, err)

	data := []byte{0x48, 0xFF, 0x5c, 0x01, 0x02, 0x03, 0x04, 0x99}
	zigtest.ExpectEquality(t, p.Matches(data), true)

	wrong := []byte{0x48, 0xFF, 0x5d, 0x01, 0x02, 0x03, 0x04, 0x99}
	zigtest.ExpectEquality(t, p.Matches(wrong), false)

	short := []byte{0x48, 0xFF, 0x5c}
	zigtest.ExpectEquality(t, p.Matches(short), false)
}

func TestLongestByteSequence(t *testing.T) {
	p, err := pattern.Parse("? 48 89 5c 24 ? e8 (x:rel) 90 90")
	zigtest.ExpectSuccess(t, err)

	run, offset := p.LongestByteSequence()
	zigtest.ExpectEquality(t, len(run), 4)
	zigtest.ExpectEquality(t, offset, 1)
	for _, it := range run {
		zigtest.ExpectEquality(t, it.Kind, pattern.ItemByte)
	}
}

func TestLongestByteSequenceTiesPreferFirst(t *testing.T) {
	p, err := pattern.Parse("48 89 ? 5c 24")
	zigtest.ExpectSuccess(t, err)

	run, offset := p.LongestByteSequence()
	zigtest.ExpectEquality(t, len(run), 2)
	zigtest.ExpectEquality(t, offset, 0)
}

func TestLongestByteSequenceAllWildcards(t *testing.T) {
	p, err := pattern.Parse("? ? (x:rel)")
	zigtest.ExpectSuccess(t, err)

	run, offset := p.LongestByteSequence()
	zigtest.ExpectEquality(t, len(run), 0)
	zigtest.ExpectEquality(t, offset, 0)
}
