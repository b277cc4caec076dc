package models

import (
	"fmt"
	"slices"
)

// Category is one of the nine activity areas a child is rated in.
type Category string

const (
	CategorySensory    Category = "Sensory"
	CategoryMusic      Category = "Music"
	CategoryFood       Category = "Food"
	CategoryFineMotor  Category = "Fine Motor"
	CategoryGrossMotor Category = "Gross Motor"
	CategorySocial     Category = "Social"
	CategoryFreePlay   Category = "Free Play"
	CategoryAcademic   Category = "Academic"
	CategoryOther      Category = "Other"
)

// Categories in display order.
var Categories = []Category{
	CategorySensory,
	CategoryMusic,
	CategoryFood,
	CategoryFineMotor,
	CategoryGrossMotor,
	CategorySocial,
	CategoryFreePlay,
	CategoryAcademic,
	CategoryOther,
}

// Skill is one of the five developmental competencies derived from category ratings.
type Skill string

const (
	SkillResilience     Skill = "Resilience"
	SkillCuriosity      Skill = "Curiosity"
	SkillCommunication  Skill = "Communication"
	SkillEmpathy        Skill = "Empathy"
	SkillProblemSolving Skill = "Problem-solving"
)

// Skills in profile order.
var Skills = []Skill{
	SkillResilience,
	SkillCuriosity,
	SkillCommunication,
	SkillEmpathy,
	SkillProblemSolving,
}

var categorySkills = map[Category][]Skill{
	CategorySensory:    {SkillResilience, SkillCuriosity},
	CategoryMusic:      {SkillCommunication, SkillCuriosity},
	CategoryFood:       {SkillResilience, SkillProblemSolving},
	CategoryFineMotor:  {SkillProblemSolving, SkillResilience},
	CategoryGrossMotor: {SkillResilience, SkillCommunication},
	CategorySocial:     {SkillEmpathy, SkillCommunication},
	CategoryFreePlay:   {SkillCuriosity, SkillProblemSolving, SkillEmpathy},
	CategoryAcademic:   {SkillProblemSolving, SkillCuriosity, SkillCommunication},
	CategoryOther:      {SkillResilience, SkillEmpathy, SkillCommunication},
}

var categoryGuidelines = map[Category][]string{
	CategorySensory: {
		"Observe child's reaction to different textures during sensory play",
		"Note engagement level with various sensory materials",
		"Assess ability to describe sensory experiences verbally",
	},
	CategoryMusic: {
		"Evaluate rhythm-keeping abilities during musical activities",
		"Observe participation and creativity in music-making",
		"Note response to different genres and tempos of music",
	},
	CategoryFood: {
		"Assess willingness to try new foods",
		"Observe fine motor skills during self-feeding",
		"Note child's ability to describe tastes and textures",
	},
	CategoryFineMotor: {
		"Evaluate pencil grip and control during drawing activities",
		"Observe manipulation of small objects like beads or buttons",
		"Assess ability to use scissors or other fine motor tools",
	},
	CategoryGrossMotor: {
		"Observe balance and coordination during outdoor play",
		"Evaluate ability to navigate obstacle courses",
		"Assess participation in group movement activities",
	},
	CategorySocial: {
		"Observe interactions with peers during free play",
		"Note ability to share and take turns",
		"Evaluate emotional regulation in social situations",
	},
	CategoryFreePlay: {
		"Assess creativity and imagination in self-directed play",
		"Observe problem-solving approaches during play",
		"Note ability to sustain engagement in chosen activities",
	},
	CategoryAcademic: {
		"Evaluate interest in books and storytelling",
		"Observe recognition of letters, numbers, or shapes",
		"Assess ability to follow multi-step instructions",
	},
	CategoryOther: {
		"Note any unique interests or talents",
		"Observe adaptability to new situations or challenges",
		"Assess overall enthusiasm for learning and exploration",
	},
}

func ParseCategory(s string) (Category, error) {
	c := Category(s)
	if !c.Valid() {
		return "", fmt.Errorf("unknown category %q", s)
	}
	return c, nil
}

func (c Category) Valid() bool {
	_, ok := categorySkills[c]
	return ok
}

// Skills returns the skills a rating in c contributes to.
func (c Category) Skills() []Skill {
	return slices.Clone(categorySkills[c])
}

// Guidelines returns the observation prompts shown next to the category.
func (c Category) Guidelines() []string {
	return slices.Clone(categoryGuidelines[c])
}

// CategorySkillMap returns a copy of the full category to skill mapping.
func CategorySkillMap() map[Category][]Skill {
	out := make(map[Category][]Skill, len(categorySkills))
	for c, skills := range categorySkills {
		out[c] = slices.Clone(skills)
	}
	return out
}

func (c *Category) UnmarshalText(text []byte) error {
	parsed, err := ParseCategory(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// CategorySet marks categories touched during an editing session.
type CategorySet map[Category]bool

func (s CategorySet) Has(c Category) bool {
	return s[c]
}
