package semantic

import (
	"context"
	"testing"

	"github.com/knitli/codeweaver/internal/chunker/chunkapi"
	"github.com/knitli/codeweaver/internal/chunkmodel"
	"github.com/stretchr/testify/require"
)

const goSample = `package sample

// Greet returns a friendly greeting.
func Greet(name string) string {
	return "hello " + name
}

type Widget struct {
	Name string
}

func (w Widget) Render() string {
	return w.Name
}
`

func TestChunker_GoFunctionsAndMethods(t *testing.T) {
	c := &Chunker{Language: "go"}
	result, err := c.Chunk(context.Background(), "sample.go", goSample, chunkapi.DefaultOptions())
	require.NoError(t, err)
	require.NotEmpty(t, result.Chunks)

	var sawFunction, sawMethod, sawStruct bool
	for _, ch := range result.Chunks {
		require.True(t, ch.Valid())
		require.Equal(t, chunkmodel.SourceSemantic, ch.Source)
		require.NotNil(t, ch.Semantic)
		switch ch.Semantic.Classification {
		case "FUNCTION":
			sawFunction = true
		case "METHOD":
			sawMethod = true
		case "STRUCT":
			sawStruct = true
		}
	}
	require.True(t, sawFunction)
	require.True(t, sawMethod)
	require.True(t, sawStruct)
}

func TestChunker_EmptyFileIsEdgeCase(t *testing.T) {
	c := &Chunker{Language: "go"}
	result, err := c.Chunk(context.Background(), "empty.go", "   \n\n  ", chunkapi.DefaultOptions())
	require.NoError(t, err)
	require.Len(t, result.Chunks, 1)
	require.Equal(t, chunkmodel.SourceEdgeCase, result.Chunks[0].Source)
}

func TestChunker_SingleLineIsEdgeCase(t *testing.T) {
	c := &Chunker{Language: "go"}
	result, err := c.Chunk(context.Background(), "oneline.go", "package sample", chunkapi.DefaultOptions())
	require.NoError(t, err)
	require.Len(t, result.Chunks, 1)
	require.Equal(t, chunkmodel.SourceEdgeCase, result.Chunks[0].Source)
}

func TestChunker_BinaryContentFailsWithBinaryFileError(t *testing.T) {
	c := &Chunker{Language: "go"}
	_, err := c.Chunk(context.Background(), "binary.go", "package x\x00garbage", chunkapi.DefaultOptions())
	require.Error(t, err)
	var binErr *chunkapi.BinaryFileError
	require.ErrorAs(t, err, &binErr)
}

const pythonSample = `def calculate_score(values):
    return sum(values)


class Calculator:
    def add(self, a, b):
        return a + b
`

// A class that fits the token limit emits exactly one chunk for the class
// and none for its nested method: the outer node wins the spec's "prefer
// the outer (parent) when it fits" tie-break, instead of also emitting a
// separate chunk for each chunkable member inside it.
func TestChunker_ContainerThatFitsDoesNotAlsoEmitNestedMembers(t *testing.T) {
	c := &Chunker{Language: "python"}
	result, err := c.Chunk(context.Background(), "sample.py", pythonSample, chunkapi.DefaultOptions())
	require.NoError(t, err)
	require.Len(t, result.Chunks, 2)

	var classChunks, functionChunks int
	for _, ch := range result.Chunks {
		require.NotNil(t, ch.Semantic)
		switch ch.Semantic.Classification {
		case "CLASS":
			classChunks++
			require.Equal(t, "Calculator", ch.DisplayName)
		case "FUNCTION":
			functionChunks++
			require.Equal(t, "calculate_score", ch.DisplayName)
		}
	}
	require.Equal(t, 1, classChunks)
	require.Equal(t, 1, functionChunks)
}
