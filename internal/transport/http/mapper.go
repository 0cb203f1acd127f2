package http

import (
	"encoding/json"

	"github.com/driftline/roomcast/internal/core"
	"github.com/driftline/roomcast/internal/proto"
)

func inboundToCommand(inbound proto.Inbound) (*core.Command, *proto.Error, error) {
	switch inbound.Type {
	case proto.InboundTypeJoinRoom:
		var join proto.JoinRoomData
		if err := json.Unmarshal(inbound.Data, &join); err != nil {
			return nil, nil, err
		}
		if join.Room == "" {
			return nil, &proto.Error{Code: core.ErrCodeBadRequest, Message: "room is required"}, nil
		}
		return &core.Command{
			Kind: core.CommandJoinRoom,
			Room: join.Room,
		}, nil, nil
	case proto.InboundTypeChatMessage:
		var msg proto.ChatMessageData
		if err := json.Unmarshal(inbound.Data, &msg); err != nil {
			return nil, nil, err
		}
		if msg.Message == "" {
			return nil, &proto.Error{Code: core.ErrCodeBadRequest, Message: "message is required"}, nil
		}
		// The user field is ignored; the session identity is authoritative.
		return &core.Command{
			Kind: core.CommandSendMessage,
			Room: msg.Room,
			Body: msg.Message,
		}, nil, nil
	default:
		return nil, &proto.Error{Code: core.ErrCodeBadRequest, Message: "unknown message type"}, nil
	}
}

func outboundFromEvent(event core.Event) proto.Outbound {
	switch event.Kind {
	case core.EventChatMessage:
		return proto.Outbound{
			Type: proto.OutboundTypeChatMessage,
			Data: proto.ChatEventData{
				User:      event.Message.User,
				Message:   event.Message.Body,
				Timestamp: event.Message.CreatedAt,
			},
		}
	case core.EventJoined:
		return proto.Outbound{
			Type: proto.OutboundTypeJoined,
			Data: proto.JoinedData{Room: event.Room},
		}
	case core.EventHistory:
		messages := make([]proto.ChatEventData, 0, len(event.Messages))
		for _, msg := range event.Messages {
			messages = append(messages, proto.ChatEventData{
				User:      msg.User,
				Message:   msg.Body,
				Timestamp: msg.CreatedAt,
			})
		}
		return proto.Outbound{
			Type: proto.OutboundTypeHistory,
			Data: proto.HistoryData{Room: event.Room, Messages: messages},
		}
	case core.EventError:
		if event.Error == nil {
			return proto.Outbound{Type: proto.OutboundTypeError, Error: &proto.Error{Code: "unknown", Message: "unknown error"}}
		}
		return proto.Outbound{
			Type:  proto.OutboundTypeError,
			Error: &proto.Error{Code: event.Error.Code, Message: event.Error.Message},
		}
	default:
		return proto.Outbound{Type: proto.OutboundTypeError, Error: &proto.Error{Code: "unknown", Message: "unknown event"}}
	}
}
