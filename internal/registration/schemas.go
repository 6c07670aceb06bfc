package registration

import "veripass/internal/common/validation"

var personalSchema = validation.MustCompile(`{
	"type": "object",
	"required": ["firstname", "lastname", "address", "contact", "corporate_email", "dl_number", "school_role"],
	"properties": {
		"firstname": {"type": "string", "minLength": 1, "maxLength": 50},
		"middlename": {"type": "string", "maxLength": 50},
		"lastname": {"type": "string", "minLength": 1, "maxLength": 50},
		"suffix": {"type": "string", "maxLength": 10},
		"address": {"type": "string", "minLength": 1, "maxLength": 255},
		"contact": {"type": "string", "minLength": 1, "maxLength": 14},
		"corporate_email": {"type": "string", "minLength": 1, "format": "email"},
		"dl_number": {"type": "string", "minLength": 1, "maxLength": 20},
		"school_role": {"enum": ["student", "faculty & staff", "university official"]},
		"position": {"type": "string", "maxLength": 100},
		"workplace": {"type": "string", "maxLength": 100},
		"college": {"type": "string", "maxLength": 100},
		"program": {"type": "string", "maxLength": 100},
		"year_level": {"type": "string", "maxLength": 20}
	}
}`)

var vehicleSchema = validation.MustCompile(`{
	"type": "object",
	"required": ["make_model", "plate_number", "year_model", "color", "type", "engine_number", "chassis_number", "or_number", "cr_number", "owner"],
	"properties": {
		"make_model": {"type": "string", "minLength": 1, "maxLength": 100},
		"plate_number": {"type": "string", "minLength": 1, "maxLength": 20},
		"year_model": {"type": "integer", "minimum": 1950, "maximum": 2100},
		"color": {"type": "string", "minLength": 1, "maxLength": 20},
		"type": {"type": "string", "minLength": 1, "maxLength": 50},
		"engine_number": {"type": "string", "minLength": 1, "maxLength": 25},
		"chassis_number": {"type": "string", "minLength": 1, "maxLength": 25},
		"or_number": {"type": "string", "minLength": 1, "maxLength": 25},
		"cr_number": {"type": "string", "minLength": 1, "maxLength": 25},
		"owner": {"enum": ["yes", "no"]},
		"contact_number": {"type": "string", "maxLength": 14}
	},
	"if": {"properties": {"owner": {"const": "no"}}},
	"then": {
		"required": ["owner_firstname", "owner_lastname", "relationship_to_owner", "contact_number"],
		"properties": {
			"owner_firstname": {"type": "string", "minLength": 1},
			"owner_lastname": {"type": "string", "minLength": 1},
			"relationship_to_owner": {"type": "string", "minLength": 1},
			"contact_number": {"type": "string", "minLength": 1}
		}
	}
}`)

var attestationSchema = validation.MustCompile(`{
	"type": "object",
	"required": ["google_drive_link", "printed_name", "e_signature"],
	"properties": {
		"google_drive_link": {"type": "string", "minLength": 1, "format": "uri"},
		"printed_name": {"type": "string", "minLength": 1, "maxLength": 125},
		"e_signature": {"type": "string", "minLength": 1}
	}
}`)
