package model

import "time"

// Assignment records one person receiving one action.
//
// ItemName and ItemValue are copied from the action when the assignment is
// created and never follow later edits of that action.
type Assignment struct {
	ID         int64     `json:"id"`
	PersonID   int64     `json:"personId"`
	ItemType   Kind      `json:"itemType"`
	ItemID     int64     `json:"itemId"`
	ItemName   string    `json:"itemName"`
	ItemValue  int64     `json:"itemValue"`
	AssignedAt time.Time `json:"assignedAt"`
}

// Snapshot builds an unsaved assignment of action to personID at the given time.
func Snapshot(personID int64, action Action, at time.Time) Assignment {
	return Assignment{
		PersonID:   personID,
		ItemType:   action.Kind,
		ItemID:     action.ID,
		ItemName:   action.Name,
		ItemValue:  action.Value,
		AssignedAt: at,
	}
}
