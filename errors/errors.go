package errors

import "fmt"

var (
	ErrWorkerPanic   = fmt.Errorf("worker panic")
	ErrRoomNotFound  = fmt.Errorf("room not found")
	ErrBlankRoomName = fmt.Errorf("room name is blank")
	ErrBlankMessage  = fmt.Errorf("message text is blank")
	ErrProtectedRoom = fmt.Errorf("room is protected")
	ErrPersistFailed = fmt.Errorf("persist failed")
)
