package events

import "encoding/json"

// PushType identifies a server-pushed event.
type PushType string

const (
	PushRoomList            PushType = "RoomListUpdated"
	PushRoomJoined          PushType = "RoomJoined"
	PushParticipantsUpdated PushType = "ParticipantsUpdated"
	PushUserLeft            PushType = "UserLeft"
	PushPlaylistProgress    PushType = "PlaylistProgress"
	PushPlaylistUpdated     PushType = "PlaylistUpdated"
	PushChatMessage         PushType = "ChatMessageAdded"
	PushGameStarted         PushType = "GameStarted"
	PushGameUpdated         PushType = "GameUpdated"
	PushKicked              PushType = "Kicked"
	PushSuggestionUpdated   PushType = "SuggestionListUpdated"
)

// CallType identifies a request/acknowledgement call issued by the client.
type CallType string

const (
	CallCreateRoom      CallType = "CreateRoom"
	CallJoinRoom        CallType = "JoinRoom"
	CallResumeSession   CallType = "ResumeSession"
	CallLeaveRoom       CallType = "LeaveRoom"
	CallSendChat        CallType = "SendChatMessage"
	CallGetPlaylistPage CallType = "GetPlaylistPage"
	CallChangePlaylist  CallType = "ChangePlaylist"
	CallUploadChunk     CallType = "UploadPlaylistChunk"
	CallStartGame       CallType = "StartGame"
	CallSubmitAnswer    CallType = "SubmitAnswer"
	CallUpdateSettings  CallType = "UpdateRoomSettings"
	CallKickParticipant CallType = "KickParticipant"
	CallTransferHost    CallType = "TransferHost"
	CallSuggestPlaylist CallType = "SuggestPlaylist"
)

// ParsePush decodes a pushed payload into its typed struct. Returns nil for
// unknown push types so newer server events degrade to a no-op.
func ParsePush(typ PushType, data json.RawMessage) (interface{}, error) {
	switch typ {
	case PushRoomList:
		var p RoomListPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		return p, nil

	case PushRoomJoined:
		var p RoomJoinedPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		return p, nil

	case PushParticipantsUpdated:
		var p ParticipantsUpdatedPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		return p, nil

	case PushUserLeft:
		var p UserLeftPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		return p, nil

	case PushPlaylistProgress:
		var p PlaylistProgressPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		return p, nil

	case PushPlaylistUpdated:
		var p PlaylistUpdatedPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		return p, nil

	case PushChatMessage:
		var p ChatMessagePayload
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		return p, nil

	case PushGameStarted:
		var p GameStartedPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		return p, nil

	case PushGameUpdated:
		var p GameUpdatedPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		return p, nil

	case PushKicked:
		var p KickedPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		return p, nil

	case PushSuggestionUpdated:
		var p SuggestionUpdatedPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		return p, nil

	default:
		return nil, nil
	}
}
