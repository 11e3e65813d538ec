package bytecode

import (
	"fmt"
	"io"

	"github.com/dave/jennifer/jen"

	"github.com/coregx/btregex/analysis"
	"github.com/coregx/btregex/syntax"
)

const (
	bytecodePkg = "github.com/coregx/btregex/bytecode"
	syntaxPkg   = "github.com/coregx/btregex/syntax"
	analysisPkg = "github.com/coregx/btregex/analysis"
)

var encodingIdents = map[string]string{
	"UTF-8": "UTF8",
	"ASCII": "ASCII",
}

var optKindIdents = map[analysis.OptKind]string{
	analysis.OptNone:          "OptNone",
	analysis.OptExact:         "OptExact",
	analysis.OptExactIC:       "OptExactIC",
	analysis.OptExactBM:       "OptExactBM",
	analysis.OptExactBMNotRev: "OptExactBMNotRev",
	analysis.OptMap:           "OptMap",
	analysis.OptMultiLiteral:  "OptMultiLiteral",
}

var popLevelIdents = map[analysis.PopLevel]string{
	analysis.PopFree:     "PopFree",
	analysis.PopMemStart: "PopMemStart",
	analysis.PopAll:      "PopAll",
}

// GenerateGo writes a Go source file in package pkg that declares varName
// as the program p. The generated variable is initialized through
// MustLoad, so it is ready for the interpreter once the package is
// initialized.
func GenerateGo(w io.Writer, p *Program, pkg, varName string) error {
	enc, ok := encodingIdents[p.EncodingName()]
	if !ok {
		return fmt.Errorf("bytecode: cannot generate code for encoding %q", p.EncodingName())
	}

	f := jen.NewFile(pkg)
	f.HeaderComment("Code generated by btregex. DO NOT EDIT.")
	f.Commentf("%s is the compiled form of %q.", varName, p.Pattern)
	f.Var().Id(varName).Op("=").Qual(bytecodePkg, "MustLoad").Call(
		jen.Op("&").Qual(bytecodePkg, "Program").Values(programDict(p, enc)),
	)
	return f.Render(w)
}

func programDict(p *Program, enc string) jen.Dict {
	d := jen.Dict{
		jen.Id("Code"): jen.Index().Int32().ValuesFunc(func(g *jen.Group) {
			for _, v := range p.Code {
				g.Lit(int(v))
			}
		}),
		jen.Id("NumMem"):          jen.Lit(p.NumMem),
		jen.Id("NumRepeat"):       jen.Lit(p.NumRepeat),
		jen.Id("NumNullCheck"):    jen.Lit(p.NumNullCheck),
		jen.Id("NumCombExpCheck"): jen.Lit(p.NumCombExpCheck),
		jen.Id("NumCall"):         jen.Lit(p.NumCall),
		jen.Id("BtMemStart"):      memStatus(p.BtMemStart),
		jen.Id("BtMemEnd"):        memStatus(p.BtMemEnd),
		jen.Id("CaptureHistory"):  memStatus(p.CaptureHistory),
		jen.Id("PopLevel"):        jen.Qual(analysisPkg, popLevelIdents[p.PopLevel]),
		jen.Id("Options"):         jen.Qual(syntaxPkg, "Options").Call(jen.Lit(int(p.Options))),
		jen.Id("Enc"):             jen.Qual(syntaxPkg, enc),
		jen.Id("MinLen"):          jen.Lit(p.MinLen),
		jen.Id("MaxLen"):          jen.Lit(p.MaxLen),
		jen.Id("Pattern"):         jen.Lit(p.Pattern),
	}
	if len(p.Templates) > 0 {
		d[jen.Id("Templates")] = jen.Index().Index().Byte().ValuesFunc(func(g *jen.Group) {
			for _, t := range p.Templates {
				g.Index().Byte().Call(jen.Lit(string(t)))
			}
		})
	}
	if len(p.BitSets) > 0 {
		d[jen.Id("BitSets")] = jen.Index().Qual(syntaxPkg, "BitSet").ValuesFunc(func(g *jen.Group) {
			for _, b := range p.BitSets {
				g.Add(bitSetValues(b))
			}
		})
	}
	if len(p.Ranges) > 0 {
		d[jen.Id("Ranges")] = jen.Index().Op("*").Qual(syntaxPkg, "CodeRangeSet").ValuesFunc(func(g *jen.Group) {
			for _, r := range p.Ranges {
				g.Add(rangeSet(r))
			}
		})
	}
	if len(p.Classes) > 0 {
		d[jen.Id("Classes")] = jen.Index().Op("*").Qual(syntaxPkg, "CClass").ValuesFunc(func(g *jen.Group) {
			for _, cc := range p.Classes {
				g.Op("&").Qual(syntaxPkg, "CClass").Values(jen.Dict{
					jen.Id("Bits"): jen.Qual(syntaxPkg, "BitSet").Add(bitSetValues(cc.Bits)),
					jen.Id("MB"):   rangeSet(cc.MB),
					jen.Id("Not"):  jen.Lit(cc.Not),
				})
			}
		})
	}
	if len(p.RepeatRanges) > 0 {
		d[jen.Id("RepeatRanges")] = jen.Index().Qual(bytecodePkg, "RepeatRange").ValuesFunc(func(g *jen.Group) {
			for _, r := range p.RepeatRanges {
				upper := jen.Lit(r.Upper)
				if r.Upper == RepeatInfinite {
					upper = jen.Qual(bytecodePkg, "RepeatInfinite")
				}
				g.Values(jen.Dict{jen.Id("Lower"): jen.Lit(r.Lower), jen.Id("Upper"): upper})
			}
		})
	}
	if len(p.Names) > 0 {
		d[jen.Id("Names")] = jen.Map(jen.String()).Index().Int().Values(jen.DictFunc(func(dd jen.Dict) {
			for name, groups := range p.Names {
				dd[jen.Lit(name)] = jen.ValuesFunc(func(g *jen.Group) {
					for _, n := range groups {
						g.Lit(n)
					}
				})
			}
		}))
		d[jen.Id("NameOrder")] = jen.Index().String().ValuesFunc(func(g *jen.Group) {
			for _, name := range p.NameOrder {
				g.Lit(name)
			}
		})
	}
	if p.Opt != nil {
		d[jen.Id("Opt")] = optimization(p.Opt)
	}
	return d
}

func memStatus(m syntax.MemStatus) jen.Code {
	if m == syntax.MemStatusAll {
		return jen.Qual(syntaxPkg, "MemStatusAll")
	}
	return jen.Qual(syntaxPkg, "MemStatus").Call(jen.Lit(int(m)))
}

func bitSetValues(b syntax.BitSet) *jen.Statement {
	return jen.ValuesFunc(func(g *jen.Group) {
		for _, w := range b {
			g.Lit(int(w))
		}
	})
}

func rangeSet(r *syntax.CodeRangeSet) *jen.Statement {
	return jen.Qual(bytecodePkg, "MustRangeSet").CallFunc(func(g *jen.Group) {
		for _, x := range r.Ranges() {
			g.Qual(syntaxPkg, "Range").Values(jen.Lit(int(x.Lo)), jen.Lit(int(x.Hi)))
		}
	})
}

// optimization renders the search hints. The skip tables are left out;
// MustLoad rebuilds them from Exact.
func optimization(o *analysis.Optimization) jen.Code {
	d := jen.Dict{
		jen.Id("Kind"):         jen.Qual(analysisPkg, optKindIdents[o.Kind]),
		jen.Id("DMin"):         jen.Lit(o.DMin),
		jen.Id("DMax"):         jen.Lit(o.DMax),
		jen.Id("ThresholdLen"): jen.Lit(o.ThresholdLen),
		jen.Id("Anchor"):       jen.Qual(syntaxPkg, "AnchorType").Call(jen.Lit(int(o.Anchor))),
		jen.Id("AnchorDMin"):   jen.Lit(o.AnchorDMin),
		jen.Id("AnchorDMax"):   jen.Lit(o.AnchorDMax),
		jen.Id("SubAnchor"):    jen.Qual(syntaxPkg, "AnchorType").Call(jen.Lit(int(o.SubAnchor))),
	}
	if len(o.Exact) > 0 {
		d[jen.Id("Exact")] = jen.Index().Byte().Call(jen.Lit(string(o.Exact)))
	}
	if o.Kind == analysis.OptMap {
		d[jen.Id("Map")] = jen.Index(jen.Lit(256)).Bool().Values(jen.DictFunc(func(m jen.Dict) {
			for c, on := range o.Map {
				if on {
					m[jen.Lit(c)] = jen.True()
				}
			}
		}))
	}
	if len(o.Literals) > 0 {
		d[jen.Id("Literals")] = jen.Index().Index().Byte().ValuesFunc(func(g *jen.Group) {
			for _, l := range o.Literals {
				g.Index().Byte().Call(jen.Lit(string(l)))
			}
		})
	}
	return jen.Op("&").Qual(analysisPkg, "Optimization").Values(d)
}

// MustRangeSet builds a code range set from sorted ranges and panics on
// error. It is used by generated code.
func MustRangeSet(rs ...syntax.Range) *syntax.CodeRangeSet {
	s, err := syntax.NewCodeRangeSet(rs...)
	if err != nil {
		panic(err)
	}
	return s
}

// Load completes a program built outside Compile, such as generated
// code: it fills in defaults, rebuilds derived search tables and
// validates the code.
func Load(p *Program) (*Program, error) {
	if p.Enc == nil {
		p.Enc = syntax.UTF8
	}
	if p.Opt == nil {
		p.Opt = &analysis.Optimization{Kind: analysis.OptNone, DMax: analysis.InfiniteDistance}
	}
	p.Opt.BuildSkipTables()
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// MustLoad is Load that panics on error.
func MustLoad(p *Program) *Program {
	p, err := Load(p)
	if err != nil {
		panic(err)
	}
	return p
}
