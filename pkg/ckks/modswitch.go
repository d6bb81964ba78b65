package ckks

import (
	"sort"

	"github.com/evaproject/eva/pkg/ir"
)

// ModSwitcher implements §4.9: a backward pass that assigns every Cipher
// term a reverse level (leaves are level 0, the deepest root is the
// maximum) and inserts ModSwitch terms wherever a term's uses disagree on
// the level they expect it at, so that every Add/Mul/Relinearize operand
// pair ends up at a matching level. On completion it stamps
// EncodeAtLevelAttribute onto every source and Encode term, measured from
// the program's maximum level down (root-relative, matching the teacher's
// ~ModSwitcher destructor finalization step).
func ModSwitcher(program *ir.Program, types *ir.DenseMap[ir.Type], scale *ir.OptionalMap[uint32]) {
	level := ir.NewDenseMap[uint32](program)
	defer level.Release()
	var encodeNodes []ir.TermIndex

	ir.BackwardPass(program, func(t *ir.Term) {
		if len(t.Uses()) == 0 {
			return
		}
		if types.Get(t) == ir.Raw {
			return
		}
		if t.Op == ir.Encode {
			encodeNodes = append(encodeNodes, t.Index())
		}

		useLevels := make(map[uint32][]ir.TermIndex)
		for _, useIdx := range t.Uses() {
			l := level.GetIdx(useIdx)
			useLevels[l] = append(useLevels[l], useIdx)
		}

		var distinct []uint32
		for l := range useLevels {
			distinct = append(distinct, l)
		}
		sort.Slice(distinct, func(i, j int) bool { return distinct[i] > distinct[j] })

		var termLevel uint32
		if len(distinct) > 1 {
			termLevel = distinct[0]
			temp := t
			tempLevel := termLevel
			for _, expectedLevel := range distinct[1:] {
				for tempLevel > expectedLevel {
					temp = insertModSwitchNode(program, scale, level, temp, tempLevel)
					tempLevel--
				}
				for _, useIdx := range useLevels[expectedLevel] {
					program.ReplaceOperand(program.Term(useIdx), t.Index(), temp.Index())
				}
			}
		} else {
			termLevel = distinct[0]
		}

		if t.Op == ir.Rescale {
			termLevel++
		}
		level.Set(t, termLevel)
	})

	var maxLevel uint32
	for _, idx := range program.GetSources() {
		if l := level.GetIdx(idx); l > maxLevel {
			maxLevel = l
		}
	}
	for _, idx := range program.GetSources() {
		source := program.Term(idx)
		source.SetU32(ir.EncodeAtLevelAttribute, maxLevel-level.GetIdx(idx))
	}
	for _, idx := range encodeNodes {
		encode := program.Term(idx)
		encode.SetU32(ir.EncodeAtLevelAttribute, maxLevel-level.GetIdx(idx))
	}
}

func insertModSwitchNode(program *ir.Program, scale *ir.OptionalMap[uint32], level *ir.DenseMap[uint32], term *ir.Term, termLevel uint32) *ir.Term {
	newNode := program.MakeTerm(ir.ModSwitch, term.Index())
	scale.Set(newNode, scale.Get(term))
	level.Set(newNode, termLevel)
	return newNode
}
