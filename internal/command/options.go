// SPDX-License-Identifier: GPL-3.0-or-later
//
// Grounded on spec.md §4.8's option grammar table, itself distilled from
// original_source/src/commands/rpcpv1_ul.c's struct ul_opts field set.
package command

import (
	"fmt"
	"strconv"
	"strings"
)

// AddrFamily selects which bind address family a side requests.
type AddrFamily int

const (
	FamilyDefault AddrFamily = iota
	FamilyV6
)

// BindSelect picks which configured bind address a side uses.
type BindSelect int

const (
	BindAny BindSelect = iota
	BindPrimary
	BindSecondary
)

// Options is the parsed modifier-flag grammar of spec.md §4.8.
type Options struct {
	Asymmetric   bool
	AsymmetricSet bool
	Bind         BindSelect
	Family       AddrFamily
	Weak         bool
	Ptime        int // 0 if unset
	Codecs       []int
	LocalAddr    string // from l<addr>
	RemoteAddr   string // from r<addr>
	ForceNewPort bool
}

// ParseOptions parses a modifiers string per spec.md §4.8's option table.
func ParseOptions(modifiers string) (Options, error) {
	var opts Options
	runes := []rune(modifiers)
	for i := 0; i < len(runes); i++ {
		c := runes[i]
		switch c {
		case 'a', 'A':
			opts.Asymmetric = true
			opts.AsymmetricSet = true
		case 's', 'S':
			opts.Asymmetric = false
			opts.AsymmetricSet = true
		case 'e', 'E':
			opts.Bind = BindSecondary
		case 'i', 'I':
			opts.Bind = BindPrimary
		case '6':
			opts.Family = FamilyV6
		case 'w', 'W':
			opts.Weak = true
		case 'n', 'N':
			opts.ForceNewPort = true
		case 'z':
			digits, consumed := takeDigits(runes[i+1:])
			if digits == "" {
				return Options{}, fmt.Errorf("command: bad ptime modifier at offset %d", i)
			}
			ptime, err := strconv.Atoi(digits)
			if err != nil || ptime <= 0 {
				return Options{}, fmt.Errorf("command: ptime must be a positive integer, got %q", digits)
			}
			opts.Ptime = ptime
			i += consumed
		case 'c':
			codecs, consumed, err := takeCodecList(runes[i+1:])
			if err != nil {
				return Options{}, err
			}
			opts.Codecs = codecs
			i += consumed
		case 'l':
			addr, consumed := takeToken(runes[i+1:])
			opts.LocalAddr = addr
			i += consumed
		case 'r':
			addr, consumed := takeToken(runes[i+1:])
			opts.RemoteAddr = addr
			i += consumed
		case ' ':
			// Separator ending an l<addr>/r<addr> literal.
		default:
			return Options{}, fmt.Errorf("command: unrecognized modifier %q", string(c))
		}
	}
	return opts, nil
}

func takeDigits(runes []rune) (string, int) {
	var sb strings.Builder
	i := 0
	for i < len(runes) && runes[i] >= '0' && runes[i] <= '9' {
		sb.WriteRune(runes[i])
		i++
	}
	return sb.String(), i
}

// takeToken consumes characters up to (but not including) the next
// whitespace or end of string, used for l<addr>/r<addr> inline address
// literals within the modifiers token.
func takeToken(runes []rune) (string, int) {
	var sb strings.Builder
	i := 0
	for i < len(runes) && runes[i] != ' ' {
		sb.WriteRune(runes[i])
		i++
	}
	return sb.String(), i
}

func takeCodecList(runes []rune) ([]int, int, error) {
	digits, consumed := takeDigits(runes)
	if digits == "" {
		return nil, 0, fmt.Errorf("command: bad codec list: expected digits")
	}
	pt, err := strconv.Atoi(digits)
	if err != nil {
		return nil, 0, fmt.Errorf("command: bad codec list: %v", err)
	}
	codecs := []int{pt}
	i := consumed
	for i < len(runes) && runes[i] == ',' {
		more, n := takeDigits(runes[i+1:])
		if more == "" {
			return nil, 0, fmt.Errorf("command: bad codec list: trailing comma")
		}
		pt, err := strconv.Atoi(more)
		if err != nil {
			return nil, 0, fmt.Errorf("command: bad codec list: %v", err)
		}
		codecs = append(codecs, pt)
		i += 1 + n
	}
	return codecs, i, nil
}
