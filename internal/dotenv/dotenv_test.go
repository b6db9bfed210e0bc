package dotenv_test

import (
	"testing"

	"github.com/envmgr/envmgr/internal/dotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Basics(t *testing.T) {
	text := "# comment\n\nDB_HOST=localhost\nDB_PORT=5432\n   # indented comment\nAPI_URL=https://api.example.com?a=1&b=2\n"
	entries := dotenv.Parse(text)
	require.Len(t, entries, 3)
	assert.Equal(t, dotenv.Entry{Key: "DB_HOST", Value: "localhost"}, entries[0])
	assert.Equal(t, dotenv.Entry{Key: "DB_PORT", Value: "5432"}, entries[1])
	// value keeps everything after the first '='
	assert.Equal(t, "https://api.example.com?a=1&b=2", entries[2].Value)
}

func TestParse_QuoteStripping(t *testing.T) {
	m := dotenv.ParseMap("A=\"quoted\"\nB='single'\nC=\"mismatched'\nD=\"\"\n")
	assert.Equal(t, "quoted", m["A"])
	assert.Equal(t, "single", m["B"])
	assert.Equal(t, "\"mismatched'", m["C"])
	assert.Equal(t, "", m["D"])
}

func TestParse_SkipsNonAssignments(t *testing.T) {
	entries := dotenv.Parse("no equals here\n=novalue-key\nOK=1\n")
	require.Len(t, entries, 1)
	assert.Equal(t, "OK", entries[0].Key)
}

func TestParse_LastOccurrenceWins(t *testing.T) {
	m := dotenv.ParseMap("A=1\nA=2")
	assert.Equal(t, map[string]string{"A": "2"}, m)
}

func TestParse_LowercaseKeysNormalized(t *testing.T) {
	entries := dotenv.Parse("db_host=x\n")
	require.Len(t, entries, 1)
	assert.Equal(t, "DB_HOST", entries[0].Key)
}

func TestRoundTrip(t *testing.T) {
	in := map[string]string{
		"DB_HOST":  "localhost",
		"DB_PASS":  "p=a=s=s",
		"EMPTY":    "",
		"API_KEY":  "abc123",
		"ZZ_LAST":  "tail",
		"A_FIRST":  "head",
		"MID_99_X": "x y z",
	}
	out := dotenv.ParseMap(dotenv.Serialize(in))
	assert.Equal(t, in, out)
}

func TestSerialize_SortedByKey(t *testing.T) {
	got := dotenv.Serialize(map[string]string{"B": "2", "A": "1", "C": "3"})
	assert.Equal(t, "A=1\nB=2\nC=3\n", got)
}

func TestSerialize_Empty(t *testing.T) {
	assert.Equal(t, "", dotenv.Serialize(nil))
}

func TestNormalizeKey_Idempotent(t *testing.T) {
	for _, k := range []string{"db_host", "DB_HOST", "  spaced  ", "Already_OK_9"} {
		once := dotenv.NormalizeKey(k)
		assert.Equal(t, once, dotenv.NormalizeKey(once))
	}
}

func TestValidKey(t *testing.T) {
	assert.True(t, dotenv.ValidKey("DB_HOST"))
	assert.True(t, dotenv.ValidKey("A1_2B"))
	assert.False(t, dotenv.ValidKey("db_host"))
	assert.False(t, dotenv.ValidKey("WITH-HYPHEN"))
	assert.False(t, dotenv.ValidKey("WITH SPACE"))
	assert.False(t, dotenv.ValidKey(""))
}

func TestLooksSecret(t *testing.T) {
	assert.True(t, dotenv.LooksSecret("DB_PASSWORD"))
	assert.True(t, dotenv.LooksSecret("api_key"))
	assert.True(t, dotenv.LooksSecret("GITHUB_TOKEN"))
	assert.True(t, dotenv.LooksSecret("PRIVATE_CERT"))
	assert.False(t, dotenv.LooksSecret("DB_HOST"))
	assert.False(t, dotenv.LooksSecret("LOG_LEVEL"))
}
