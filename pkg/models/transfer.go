package models

import "time"

type TransferRecord struct {
	ID        string    `json:"id"`
	TaskID    string    `json:"task_id"`
	FromActor string    `json:"from_actor"`
	ToActor   string    `json:"to_actor"`
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"created_at"`
}
