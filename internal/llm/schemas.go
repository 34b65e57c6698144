package llm

import (
	"encoding/json"

	"github.com/invopop/jsonschema"
)

// WorkoutEntry is one element of the JSON array the model returns for a week.
type WorkoutEntry struct {
	Week        int    `json:"week" jsonschema:"minimum=1,maximum=4" jsonschema_description:"Week of the plan this workout belongs to."`
	Day         int    `json:"day" jsonschema:"minimum=1,maximum=7" jsonschema_description:"Day of the week, 1 to 7. The same day may appear twice for a double session."`
	Activity    string `json:"activity" jsonschema_description:"Discipline such as swim, bike, run, strength, or rest for an off day."`
	Duration    int    `json:"duration" jsonschema:"minimum=0" jsonschema_description:"Session length in minutes, 0 for rest days."`
	Description string `json:"description" jsonschema_description:"What the athlete should do in this session."`
}

func GenerateSchema[T any]() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v T
	schema := reflector.Reflect(v)
	return schema
}

var WorkoutEntrySchema = GenerateSchema[WorkoutEntry]()

// RequiredFields are the keys every entry in a reply must carry.
var RequiredFields = WorkoutEntrySchema.Required

// SchemaText renders the entry schema for inclusion in a prompt.
func SchemaText() string {
	b, err := json.Marshal(WorkoutEntrySchema)
	if err != nil {
		return ""
	}
	return string(b)
}
