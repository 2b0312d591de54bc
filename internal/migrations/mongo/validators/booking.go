package validators

import "go.mongodb.org/mongo-driver/bson"

var userRef = bson.M{
	"bsonType": "object",
	"required": []string{"id", "type"},
	"properties": bson.M{
		"id": bson.M{
			"bsonType":  "string",
			"minLength": 1,
		},
		"type": bson.M{
			"bsonType": "string",
			"enum":     []string{"manager", "agent"},
		},
	},
}

var BookingValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"property_id",
			"assigned_user",
			"visitor",
			"start_at",
			"end_at",
			"timezone",
			"status",
			"created_by",
			"audit_log",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType":  "string",
				"minLength": 24,
				"maxLength": 24,
			},

			"property_id": bson.M{
				"bsonType":  "string",
				"minLength": 1,
			},

			"assigned_user": userRef,

			"visitor": bson.M{
				"bsonType": "object",
				"properties": bson.M{
					"name":     bson.M{"bsonType": "string", "maxLength": 100},
					"phone":    bson.M{"bsonType": "string"},
					"name_key": bson.M{"bsonType": "string"},
				},
			},

			"start_at": bson.M{
				"bsonType": "date",
			},

			"end_at": bson.M{
				"bsonType": "date",
			},

			"timezone": bson.M{
				"bsonType": "string",
			},

			"status": bson.M{
				"bsonType": "string",
				"enum": []string{
					"pending",
					"approved",
					"denied",
					"rescheduled",
					"cancelled",
				},
			},

			"created_by": bson.M{
				"bsonType": "string",
				"enum":     []string{"voice_agent", "dashboard", "phone"},
			},

			"proposed_slots": bson.M{
				"bsonType": "array",
				"maxItems": 3,
			},

			"audit_log": bson.M{
				"bsonType": "array",
			},

			"deleted_at": bson.M{
				"bsonType": []string{"date", "null"},
			},
		},
	},
}
