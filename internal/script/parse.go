package script

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"unicode"

	"fortio.org/safecast"
)

// ParseError reports a malformed line.
type ParseError struct {
	File string
	Line int
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s:%d: %s", e.File, e.Line, e.Msg)
}

// ParseFile reads and parses a script file.
func ParseFile(path string) (*Script, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(path, f)
}

// ParseString parses src.
func ParseString(name, src string) (*Script, error) {
	return Parse(name, strings.NewReader(src))
}

// Parse reads a script from r. name is used in error positions.
func Parse(name string, r io.Reader) (*Script, error) {
	s := &Script{Name: name}
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		fields, err := splitFields(scanner.Text())
		if err != nil {
			return nil, &ParseError{File: name, Line: line, Msg: err.Error()}
		}
		if len(fields) == 0 {
			continue
		}
		op, err := parseOp(fields)
		if err != nil {
			return nil, &ParseError{File: name, Line: line, Msg: err.Error()}
		}
		op.Line = line
		s.Ops = append(s.Ops, op)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return s, nil
}

// splitFields splits a line on spaces, keeping double-quoted strings (with Go
// escapes) as one unquoted field. A '#' outside quotes ends the line.
func splitFields(line string) ([]string, error) {
	var fields []string
	rest := line
	for {
		rest = strings.TrimLeftFunc(rest, unicode.IsSpace)
		if rest == "" || rest[0] == '#' {
			return fields, nil
		}
		if rest[0] == '"' {
			quoted, err := strconv.QuotedPrefix(rest)
			if err != nil {
				return nil, fmt.Errorf("unterminated string literal")
			}
			unquoted, err := strconv.Unquote(quoted)
			if err != nil {
				return nil, fmt.Errorf("invalid string literal %s", quoted)
			}
			// Keep the quote marker so operands can tell a string from a word.
			fields = append(fields, "\""+unquoted)
			rest = rest[len(quoted):]
			continue
		}
		end := strings.IndexFunc(rest, func(r rune) bool { return unicode.IsSpace(r) || r == '#' })
		if end < 0 {
			end = len(rest)
		}
		fields = append(fields, rest[:end])
		rest = rest[end:]
	}
}

func parseOp(fields []string) (Op, error) {
	head := fields[0]
	args := fields[1:]
	switch head {
	case "push":
		if len(args) == 0 {
			return Op{}, fmt.Errorf("push needs a kind (int|real|bool|null|string|array)")
		}
		return parsePush(args[0], args[1:])
	case "intern":
		str, err := stringArg(head, args)
		return Op{Kind: OpIntern, Str: str}, err
	case "pop":
		return Op{Kind: OpPop}, noArgs(head, args)
	case "dup":
		return Op{Kind: OpDup}, noArgs(head, args)
	case "collect":
		return Op{Kind: OpCollect}, noArgs(head, args)
	case "store":
		n, err := intArg(head, args)
		return Op{Kind: OpStore, Int: n}, err
	case "set-global":
		str, err := stringArg(head, args)
		return Op{Kind: OpSetGlobal, Str: str}, err
	case "get-global":
		str, err := stringArg(head, args)
		return Op{Kind: OpGetGlobal, Str: str}, err
	case "expect":
		if len(args) == 0 {
			return Op{}, fmt.Errorf("expect needs a subject (live|stack)")
		}
		kind := OpExpectLive
		switch args[0] {
		case "live":
		case "stack":
			kind = OpExpectStack
		default:
			return Op{}, fmt.Errorf("unknown expect subject %q (expected live|stack)", args[0])
		}
		n, err := intArg("expect "+args[0], args[1:])
		return Op{Kind: kind, Int: n}, err
	default:
		return Op{}, fmt.Errorf("unknown operation %q", strings.TrimPrefix(head, "\""))
	}
}

func parsePush(kind string, args []string) (Op, error) {
	name := "push " + kind
	switch kind {
	case "int":
		n, err := intArg(name, args)
		return Op{Kind: OpPushInt, Int: n}, err
	case "array":
		n, err := intArg(name, args)
		if err == nil && n < 0 {
			err = fmt.Errorf("%s: negative length %d", name, n)
		}
		return Op{Kind: OpPushArray, Int: n}, err
	case "real":
		if len(args) != 1 || strings.HasPrefix(args[0], "\"") {
			return Op{}, fmt.Errorf("%s needs one number", name)
		}
		f, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return Op{}, fmt.Errorf("%s: %w", name, err)
		}
		return Op{Kind: OpPushReal, Real: f}, nil
	case "bool":
		if len(args) != 1 {
			return Op{}, fmt.Errorf("%s needs true or false", name)
		}
		b, err := strconv.ParseBool(args[0])
		if err != nil {
			return Op{}, fmt.Errorf("%s: %w", name, err)
		}
		return Op{Kind: OpPushBool, Bool: b}, nil
	case "null":
		return Op{Kind: OpPushNull}, noArgs(name, args)
	case "string":
		str, err := stringArg(name, args)
		return Op{Kind: OpPushString, Str: str}, err
	default:
		return Op{}, fmt.Errorf("unknown push kind %q", kind)
	}
}

func noArgs(name string, args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("%s takes no operands", name)
	}
	return nil
}

func intArg(name string, args []string) (int32, error) {
	if len(args) != 1 || strings.HasPrefix(args[0], "\"") {
		return 0, fmt.Errorf("%s needs one integer", name)
	}
	n, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	v, err := safecast.Conv[int32](n)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	return v, nil
}

func stringArg(name string, args []string) (string, error) {
	if len(args) != 1 || !strings.HasPrefix(args[0], "\"") {
		return "", fmt.Errorf("%s needs one quoted string", name)
	}
	return args[0][1:], nil
}
