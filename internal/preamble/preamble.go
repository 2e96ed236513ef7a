// Package preamble builds the explanation block shown before an exercise.
package preamble

import (
	"fmt"

	"github.com/felixgeelhaar/workshop/internal/domain"
	"github.com/felixgeelhaar/workshop/internal/view"
)

// Section headings.
const (
	KeyConceptsTitle    = "Key Concepts"
	CommonPitfallsTitle = "Common Pitfalls"
	PrerequisitesLabel  = "Prerequisites: "
)

// Build assembles the preamble for spec in a fixed order: video, title,
// intro, key concepts, common pitfalls, prerequisites. Sections whose source
// is empty are left out entirely.
func Build(spec domain.ExerciseSpec) *view.Node {
	block := view.Section("", "preamble")

	if spec.VideoFile != "" {
		block.Append(view.Video(spec.VideoFile))
	}

	block.Append(view.Heading(spec.DisplayTitle()))

	if spec.PreambleIntro != "" {
		block.Append(view.Paragraph(spec.PreambleIntro))
	}

	block.Append(
		listSection("key-concepts", KeyConceptsTitle, spec.KeyConcepts),
		listSection("common-pitfalls", CommonPitfallsTitle, spec.CommonPitfalls),
	)

	if spec.Prerequisites != "" {
		p := view.Paragraph(PrerequisitesLabel + spec.Prerequisites)
		p.Class = "prerequisites"
		block.Append(p)
	}

	return block
}

// BuildFor builds the preamble for the exercise at index, giving the block a
// stable id.
func BuildFor(index int, spec domain.ExerciseSpec) *view.Node {
	block := Build(spec)
	block.ID = fmt.Sprintf("preamble-%d", index)
	return block
}

func listSection(class, title string, items []string) *view.Node {
	list := view.List("", items)
	if list == nil {
		return nil
	}
	return view.Section("", class, view.Heading(title), list)
}
