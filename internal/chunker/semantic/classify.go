package semantic

import "github.com/knitli/codeweaver/internal/chunkmodel"

// Classification is the spec's "non-UNKNOWN classification" (§4.3 step 3).
// Chunkable nodes compute one of the concrete values below; everything else
// classifies as Unknown and is never emitted directly (only possibly
// contained inside a composite pass-through parent).
type Classification string

const (
	Unknown   Classification = "UNKNOWN"
	Function  Classification = "FUNCTION"
	Method    Classification = "METHOD"
	Class     Classification = "CLASS"
	Interface Classification = "INTERFACE"
	Struct    Classification = "STRUCT"
	Enum      Classification = "ENUM"
	Module    Classification = "MODULE"
	Trait     Classification = "TRAIT"
	Comment   Classification = "COMMENT"
)

// baseImportance returns the default per-task importance vector for a
// classification, used unless a node-level heuristic overrides it (see
// adjustForSize in chunker.go). Values are deliberately coarse: the spec
// asks only for filtering/ranking signal, not a calibrated model.
func baseImportance(cls Classification) chunkmodel.Importance {
	switch cls {
	case Function, Method:
		return chunkmodel.Importance{0.9, 0.8, 0.8, 0.85, 0.4}
	case Class, Struct, Trait:
		return chunkmodel.Importance{0.85, 0.75, 0.6, 0.5, 0.45}
	case Interface:
		return chunkmodel.Importance{0.7, 0.75, 0.4, 0.3, 0.5}
	case Enum:
		return chunkmodel.Importance{0.5, 0.6, 0.35, 0.3, 0.3}
	case Module:
		return chunkmodel.Importance{0.6, 0.5, 0.3, 0.3, 0.3}
	case Comment:
		return chunkmodel.Importance{0.2, 0.6, 0.1, 0.15, 0.9}
	default:
		return chunkmodel.Importance{}
	}
}

func classifyGo(kind string) (Classification, bool) {
	switch kind {
	case "function_declaration":
		return Function, true
	case "method_declaration":
		return Method, true
	case "type_declaration":
		return Struct, true
	case "comment":
		return Comment, true
	}
	return Unknown, false
}

func classifyPython(kind string) (Classification, bool) {
	switch kind {
	case "function_definition":
		return Function, true
	case "class_definition":
		return Class, true
	case "decorated_definition":
		return Function, true
	case "comment":
		return Comment, true
	}
	return Unknown, false
}

func classifyJava(kind string) (Classification, bool) {
	switch kind {
	case "method_declaration", "constructor_declaration":
		return Method, true
	case "class_declaration":
		return Class, true
	case "interface_declaration":
		return Interface, true
	case "enum_declaration":
		return Enum, true
	case "line_comment", "block_comment":
		return Comment, true
	}
	return Unknown, false
}

func classifyJavaScript(kind string) (Classification, bool) {
	switch kind {
	case "function_declaration", "function_expression", "arrow_function", "generator_function_declaration":
		return Function, true
	case "method_definition":
		return Method, true
	case "class_declaration", "class":
		return Class, true
	case "interface_declaration":
		return Interface, true
	case "type_alias_declaration":
		return Struct, true
	case "enum_declaration":
		return Enum, true
	case "comment":
		return Comment, true
	}
	return Unknown, false
}

func classifyC(kind string) (Classification, bool) {
	switch kind {
	case "function_definition":
		return Function, true
	case "struct_specifier":
		return Struct, true
	case "enum_specifier":
		return Enum, true
	case "comment":
		return Comment, true
	}
	return Unknown, false
}

func classifyPHP(kind string) (Classification, bool) {
	switch kind {
	case "function_definition":
		return Function, true
	case "method_declaration":
		return Method, true
	case "class_declaration":
		return Class, true
	case "interface_declaration":
		return Interface, true
	case "comment":
		return Comment, true
	}
	return Unknown, false
}

func classifyRuby(kind string) (Classification, bool) {
	switch kind {
	case "method":
		return Method, true
	case "singleton_method":
		return Function, true
	case "class":
		return Class, true
	case "module":
		return Module, true
	case "comment":
		return Comment, true
	}
	return Unknown, false
}

func classifyRust(kind string) (Classification, bool) {
	switch kind {
	case "function_item":
		return Function, true
	case "struct_item":
		return Struct, true
	case "enum_item":
		return Enum, true
	case "trait_item":
		return Trait, true
	case "impl_item":
		return Class, true
	case "mod_item":
		return Module, true
	case "line_comment", "block_comment":
		return Comment, true
	}
	return Unknown, false
}
