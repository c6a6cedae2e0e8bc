package network

import (
	"context"
	"fmt"
	"time"

	"github.com/netgodgame/netgod/engine/async"
	"github.com/netgodgame/netgod/engine/chain"
	"github.com/netgodgame/netgod/engine/common"
	"github.com/netgodgame/netgod/engine/consts"
	"github.com/netgodgame/netgod/engine/gwlog"
	"github.com/netgodgame/netgod/engine/kvdb"
	"github.com/netgodgame/netgod/engine/metrics"
	"github.com/netgodgame/netgod/engine/storage"
)

// PlayerStorageType is the storage type name of saved player data
const PlayerStorageType = "Player"

// ping_time is the round trip the client measured for its previous ping, in seconds
func (s *System) handlePing(clientID common.ClientID, msg Message) {
	now := time.Now()
	s.mu.Lock()
	if cp := s.clients[clientID]; cp != nil {
		cp.lastPing = now
		if _, ok := msg["ping_time"]; ok {
			cp.ping = max(0, secondsToDuration(msg.Float("ping_time")))
			s.recordLatencyLocked(cp.ping)
		}
	}
	s.mu.Unlock()

	reply := NewMessage("pong")
	reply["timestamp"] = timestamp(now)
	s.SendPacket(clientID, reply)
}

func (s *System) handlePlayerUpdate(clientID common.ClientID, msg Message) {
	data := msg.Map("player_data")
	if storage.Initialized() {
		if playerID, err := common.ParseEntityID(data.String("id")); err == nil {
			storage.Save(PlayerStorageType, playerID, map[string]interface{}(data), nil)
		} else {
			gwlog.Warnf("%s: player update from %s not saved: %v", s, clientID, err)
		}
	}

	reply := NewMessage("player_update_ack")
	reply["player_id"] = data["id"]
	reply["timestamp"] = timestamp(time.Now())
	s.SendPacket(clientID, reply)
}

func (s *System) handleChatMessage(clientID common.ClientID, msg Message) {
	broadcast := NewMessage("chat_broadcast")
	broadcast["chat_data"] = msg.Map("chat_data")
	broadcast["sender"] = string(clientID)
	s.Broadcast(broadcast)
}

func (s *System) handleQuestProgress(clientID common.ClientID, msg Message) {
	quest := msg.Map("quest_data")
	if questID := quest.String("id"); questID != "" && kvdb.Initialized() {
		key := fmt.Sprintf("quest/%s/%s", clientID, questID)
		kvdb.Put(key, quest.String("progress"), func(err error) {
			if err != nil {
				gwlog.Errorf("%s: save %s failed: %v", s, key, err)
			}
		})
	}

	reply := NewMessage("quest_progress_ack")
	reply["quest_id"] = quest["id"]
	reply["progress"] = quest["progress"]
	reply["timestamp"] = timestamp(time.Now())
	s.SendPacket(clientID, reply)
}

func (s *System) handleTransactionRequest(clientID common.ClientID, msg Message) {
	ledger := s.Ledger()
	if ledger == nil || !ledger.Connected() {
		s.sendTransactionError(clientID, "Blockchain not connected")
		return
	}
	req, err := parseTxRequest(msg.Map("transaction_data"))
	if err != nil {
		s.sendTransactionError(clientID, err.Error())
		return
	}

	async.AppendAsyncJob(AsyncGroup, func() (interface{}, error) {
		ctx, cancel := context.WithTimeout(context.Background(), consts.CHAIN_RPC_TIMEOUT)
		defer cancel()
		tx, err := ledger.Submit(ctx, clientID, req)
		return tx, err
	}, func(res interface{}, err error) {
		if err != nil {
			gwlog.Warnf("%s: transaction of %s rejected: %v", s, clientID, err)
			metrics.IncTransaction("rejected")
			s.sendTransactionError(clientID, err.Error())
			return
		}

		tx := res.(*chain.Transaction)
		metrics.IncTransaction(string(tx.Status))
		s.persistTransaction(tx)

		reply := NewMessage("transaction_confirmed")
		reply["transaction_id"] = tx.ID
		reply["status"] = string(tx.Status)
		reply["timestamp"] = timestamp(time.Now())
		s.SendPacket(clientID, reply)
	})
}

func (s *System) sendTransactionError(clientID common.ClientID, reason string) {
	reply := NewMessage("transaction_error")
	reply["error"] = reason
	reply["timestamp"] = timestamp(time.Now())
	s.SendPacket(clientID, reply)
}
