package validators

import "go.mongodb.org/mongo-driver/bson"

var AvailabilitySlotValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"user_id",
			"user_type",
			"start_at",
			"end_at",
			"slot_type",
			"source",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"user_id": bson.M{
				"bsonType":  "string",
				"minLength": 1,
			},

			"user_type": bson.M{
				"bsonType": "string",
				"enum":     []string{"manager", "agent"},
			},

			"start_at": bson.M{
				"bsonType": "date",
			},

			"end_at": bson.M{
				"bsonType": "date",
			},

			"slot_type": bson.M{
				"bsonType": "string",
				"enum": []string{
					"available",
					"unavailable",
					"busy",
					"personal",
					"booking",
				},
			},

			"source": bson.M{
				"bsonType": "string",
				"enum":     []string{"manual", "booking", "system"},
			},

			"booking_id": bson.M{
				"bsonType": "string",
			},

			"title": bson.M{
				"bsonType":  "string",
				"maxLength": 200,
			},
		},
	},
}
