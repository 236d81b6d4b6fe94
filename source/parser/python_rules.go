package parser

import (
	sitter "github.com/smacker/go-tree-sitter"
)

// The tree-sitter Python grammar is more permissive than the compiler: it
// keeps Python 2 statements and does not track function or loop context.
// checkPythonRules reports the first construct CPython's compile() rejects
// that the grammar lets through.
func checkPythonRules(root *sitter.Node) *SyntaxError {
	return walkPython(root, false, false)
}

func walkPython(n *sitter.Node, inFunc, inLoop bool) *SyntaxError {
	switch n.Type() {
	case "print_statement":
		return pythonError(n, "Missing parentheses in call to 'print'")
	case "exec_statement":
		return pythonError(n, "Missing parentheses in call to 'exec'")
	case "return_statement":
		if !inFunc {
			return pythonError(n, "'return' outside function")
		}
	case "yield":
		if !inFunc {
			return pythonError(n, "'yield' outside function")
		}
	case "break_statement":
		if !inLoop {
			return pythonError(n, "'break' outside loop")
		}
	case "continue_statement":
		if !inLoop {
			return pythonError(n, "'continue' not properly in loop")
		}
	case "parameters", "lambda_parameters":
		if serr := checkParameterOrder(n); serr != nil {
			return serr
		}
	}

	body := n.ChildByFieldName("body")
	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		if child == nil {
			continue
		}
		childFunc, childLoop := inFunc, inLoop
		switch n.Type() {
		case "function_definition":
			if sameNode(child, body) {
				childFunc, childLoop = true, false
			}
		case "lambda":
			childFunc, childLoop = true, false
		case "class_definition":
			if sameNode(child, body) {
				childFunc, childLoop = false, false
			}
		case "for_statement", "while_statement":
			if sameNode(child, body) {
				childLoop = true
			}
		}
		if serr := walkPython(child, childFunc, childLoop); serr != nil {
			return serr
		}
	}
	return nil
}

// checkParameterOrder rejects a positional parameter without a default that
// follows one with a default. Parameters after * or *args are keyword-only
// and exempt.
func checkParameterOrder(params *sitter.Node) *SyntaxError {
	seenDefault, keywordOnly := false, false
	for i := 0; i < int(params.NamedChildCount()); i++ {
		p := params.NamedChild(i)
		switch p.Type() {
		case "default_parameter", "typed_default_parameter":
			seenDefault = true
		case "list_splat_pattern", "dictionary_splat_pattern", "keyword_separator":
			keywordOnly = true
		case "typed_parameter":
			if first := p.NamedChild(0); first != nil &&
				(first.Type() == "list_splat_pattern" || first.Type() == "dictionary_splat_pattern") {
				keywordOnly = true
				continue
			}
			if seenDefault && !keywordOnly {
				return pythonError(p, "parameter without a default follows parameter with a default")
			}
		case "identifier":
			if seenDefault && !keywordOnly {
				return pythonError(p, "parameter without a default follows parameter with a default")
			}
		}
	}
	return nil
}

func sameNode(a, b *sitter.Node) bool {
	return a != nil && b != nil &&
		a.StartByte() == b.StartByte() && a.EndByte() == b.EndByte() && a.Type() == b.Type()
}

func pythonError(n *sitter.Node, msg string) *SyntaxError {
	return &SyntaxError{Line: int(n.StartPoint().Row) + 1, Message: msg}
}
