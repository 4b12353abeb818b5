package store

import (
	"context"
	"errors"
	"regexp"
	"time"

	mongoutil "PairLink/data/database/mgo/mongoutil"
	"PairLink/module/pairing/model"
	errs "PairLink/tools/errs"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	collUsers    = "users"
	collRequests = "partner_requests"
)

type MongoStore struct {
	cli *mongoutil.Client
}

func NewMongoStore(cli *mongoutil.Client) *MongoStore {
	return &MongoStore{cli: cli}
}

func (s *MongoStore) users() *mongo.Collection {
	return s.cli.GetDB().Collection(collUsers)
}

func (s *MongoStore) requests() *mongo.Collection {
	return s.cli.GetDB().Collection(collRequests)
}

func (s *MongoStore) GetUser(ctx context.Context, userID string) (*model.User, error) {
	var u model.User
	err := s.users().FindOne(ctx, bson.M{"user_id": userID}).Decode(&u)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, mongoutil.Classify(err)
	}
	return &u, nil
}

func (s *MongoStore) UpsertUser(ctx context.Context, u *model.User) error {
	u.UpdateTime = time.Now()
	if u.CreateTime.IsZero() {
		u.CreateTime = u.UpdateTime
	}
	_, err := s.users().ReplaceOne(ctx,
		bson.M{"user_id": u.UserID}, u, options.Replace().SetUpsert(true))
	return mongoutil.Classify(err)
}

func (s *MongoStore) ReplaceInviteCodes(ctx context.Context, userID string, codes []model.InviteCode) error {
	res, err := s.users().UpdateOne(ctx,
		bson.M{"user_id": userID},
		bson.M{"$set": bson.M{"invite_codes": codes, "update_time": time.Now()}})
	if err != nil {
		return mongoutil.Classify(err)
	}
	if res.MatchedCount == 0 {
		return errs.ErrNotLoggedIn.WrapMsg("user record missing", "userID", userID)
	}
	return nil
}

func (s *MongoStore) FindRedeemableCode(ctx context.Context, code string, now time.Time) (*model.User, *model.InviteCode, error) {
	// Codes are not globally indexed; this matches inside each user's
	// invite_codes array and is linear over active codes.
	filter := bson.M{"invite_codes": bson.M{"$elemMatch": bson.M{
		"code": code,
		"used": false,
	}}}
	var owner model.User
	err := s.users().FindOne(ctx, filter).Decode(&owner)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, mongoutil.Classify(err)
	}
	for i := range owner.InviteCodes {
		c := &owner.InviteCodes[i]
		if c.Code == code && c.Redeemable(now) {
			return &owner, c, nil
		}
	}
	return nil, nil, nil
}

func (s *MongoStore) PairWithCode(ctx context.Context, ownerID, redeemerID, code string, now time.Time) error {
	_, err := s.cli.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		var owner, redeemer model.User
		if err := s.users().FindOne(sc, bson.M{"user_id": ownerID}).Decode(&owner); err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				return nil, errs.ErrInvalidOrExpiredCode.WrapMsg("code owner vanished")
			}
			return nil, err
		}
		if err := s.users().FindOne(sc, bson.M{"user_id": redeemerID}).Decode(&redeemer); err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				return nil, errs.ErrNotLoggedIn.WrapMsg("redeemer record missing")
			}
			return nil, err
		}
		if owner.HasPartner() || redeemer.HasPartner() {
			return nil, errs.ErrAlreadyPartnered.Wrap()
		}

		// re-validate inside the transaction: a concurrent redemption
		// that committed first has already flipped used=true
		valid := false
		for i := range owner.InviteCodes {
			c := &owner.InviteCodes[i]
			if c.Code == code && c.Redeemable(now) {
				valid = true
				break
			}
		}
		if !valid {
			return nil, errs.ErrInvalidOrExpiredCode.Wrap()
		}

		_, err := s.users().UpdateOne(sc,
			bson.M{"user_id": ownerID, "invite_codes.code": code},
			bson.M{"$set": bson.M{
				"partner_id":             redeemerID,
				"partner_name":           redeemer.DisplayName,
				"update_time":            now,
				"invite_codes.$.used":    true,
				"invite_codes.$.used_by": redeemerID,
				"invite_codes.$.used_at": now,
			}})
		if err != nil {
			return nil, err
		}
		_, err = s.users().UpdateOne(sc,
			bson.M{"user_id": redeemerID},
			bson.M{"$set": bson.M{
				"partner_id":   ownerID,
				"partner_name": owner.DisplayName,
				"update_time":  now,
			}})
		return nil, err
	})
	return err
}

func (s *MongoStore) SearchUnpartnered(ctx context.Context, term, excludeID string, limit int) ([]model.User, error) {
	pattern := primitive.Regex{Pattern: regexp.QuoteMeta(term), Options: "i"}
	filter := bson.M{
		"user_id": bson.M{"$ne": excludeID},
		"$and": bson.A{
			bson.M{"$or": bson.A{
				bson.M{"partner_id": ""},
				bson.M{"partner_id": bson.M{"$exists": false}},
			}},
			bson.M{"$or": bson.A{
				bson.M{"display_name": pattern},
				bson.M{"email": pattern},
			}},
		},
	}
	cur, err := s.users().Find(ctx, filter, options.Find().SetLimit(int64(limit)))
	if err != nil {
		return nil, mongoutil.Classify(err)
	}
	defer cur.Close(ctx)

	var out []model.User
	if err := cur.All(ctx, &out); err != nil {
		return nil, mongoutil.Classify(err)
	}
	return out, nil
}

func (s *MongoStore) CreateRequest(ctx context.Context, req *model.PartnerRequest) error {
	_, err := s.cli.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		if _, err := s.requests().InsertOne(sc, req); err != nil {
			return nil, err
		}
		res, err := s.users().UpdateOne(sc,
			bson.M{"user_id": req.RecipientID},
			bson.M{"$addToSet": bson.M{"pending_requests": req.RequestID},
				"$set": bson.M{"update_time": req.CreateTime}})
		if err != nil {
			return nil, err
		}
		if res.MatchedCount == 0 {
			return nil, errs.ErrRequestNotFound.WrapMsg("recipient missing", "recipientID", req.RecipientID)
		}
		return nil, nil
	})
	return err
}

func (s *MongoStore) GetRequest(ctx context.Context, requestID string) (*model.PartnerRequest, error) {
	var r model.PartnerRequest
	err := s.requests().FindOne(ctx, bson.M{"_id": requestID}).Decode(&r)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, mongoutil.Classify(err)
	}
	return &r, nil
}

func (s *MongoStore) GetRequests(ctx context.Context, requestIDs []string) ([]model.PartnerRequest, error) {
	if len(requestIDs) == 0 {
		return nil, nil
	}
	cur, err := s.requests().Find(ctx, bson.M{"_id": bson.M{"$in": requestIDs}})
	if err != nil {
		return nil, mongoutil.Classify(err)
	}
	defer cur.Close(ctx)

	var out []model.PartnerRequest
	if err := cur.All(ctx, &out); err != nil {
		return nil, mongoutil.Classify(err)
	}
	return out, nil
}

func (s *MongoStore) PairWithRequest(ctx context.Context, requestID, recipientID string, now time.Time) error {
	_, err := s.cli.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		var req model.PartnerRequest
		if err := s.requests().FindOne(sc, bson.M{"_id": requestID}).Decode(&req); err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				return nil, errs.ErrRequestNotFound.Wrap()
			}
			return nil, err
		}
		if req.RecipientID != recipientID {
			return nil, errs.ErrNotAuthorized.Wrap()
		}
		if req.Status != model.RequestPending {
			return nil, errs.ErrRequestNoLongerPending.Wrap()
		}
		if req.Expired(now) {
			return nil, errs.ErrRequestExpired.Wrap()
		}

		var sender, recipient model.User
		if err := s.users().FindOne(sc, bson.M{"user_id": req.SenderID}).Decode(&sender); err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				return nil, errs.ErrRequestNoLongerPending.WrapMsg("sender vanished")
			}
			return nil, err
		}
		if err := s.users().FindOne(sc, bson.M{"user_id": recipientID}).Decode(&recipient); err != nil {
			return nil, err
		}
		if sender.HasPartner() || recipient.HasPartner() {
			return nil, errs.ErrAlreadyPartnered.Wrap()
		}

		if _, err := s.requests().UpdateOne(sc,
			bson.M{"_id": requestID},
			bson.M{"$set": bson.M{"status": model.RequestAccepted, "handle_time": now}}); err != nil {
			return nil, err
		}
		if _, err := s.users().UpdateOne(sc,
			bson.M{"user_id": recipientID},
			bson.M{
				"$set": bson.M{
					"partner_id":   sender.UserID,
					"partner_name": sender.DisplayName,
					"update_time":  now,
				},
				"$pull": bson.M{"pending_requests": requestID},
			}); err != nil {
			return nil, err
		}
		_, err := s.users().UpdateOne(sc,
			bson.M{"user_id": sender.UserID},
			bson.M{"$set": bson.M{
				"partner_id":   recipient.UserID,
				"partner_name": recipient.DisplayName,
				"update_time":  now,
			}})
		return nil, err
	})
	return err
}

func (s *MongoStore) DeclineRequest(ctx context.Context, requestID, recipientID string, now time.Time) error {
	_, err := s.cli.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		// idempotent: only a still-pending request flips to declined
		_, err := s.requests().UpdateOne(sc,
			bson.M{"_id": requestID, "status": model.RequestPending},
			bson.M{"$set": bson.M{"status": model.RequestDeclined, "handle_time": now}})
		if err != nil {
			return nil, err
		}
		_, err = s.users().UpdateOne(sc,
			bson.M{"user_id": recipientID},
			bson.M{"$pull": bson.M{"pending_requests": requestID}})
		return nil, err
	})
	return err
}

func (s *MongoStore) Unpair(ctx context.Context, userID, partnerID string) error {
	now := time.Now()
	_, err := s.cli.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		// guarded by the current pointer so a racing re-pair survives
		if _, err := s.users().UpdateOne(sc,
			bson.M{"user_id": userID, "partner_id": partnerID},
			bson.M{
				"$unset": bson.M{"partner_id": "", "partner_name": ""},
				"$set":   bson.M{"update_time": now},
			}); err != nil {
			return nil, err
		}
		_, err := s.users().UpdateOne(sc,
			bson.M{"user_id": partnerID, "partner_id": userID},
			bson.M{
				"$unset": bson.M{"partner_id": "", "partner_name": ""},
				"$set":   bson.M{"update_time": now},
			})
		return nil, err
	})
	return err
}

func (s *MongoStore) PartnerOf(ctx context.Context, userID string) (string, bool, error) {
	u, err := s.GetUser(ctx, userID)
	if err != nil {
		return "", false, err
	}
	if u == nil {
		return "", false, nil
	}
	return u.PartnerID, true, nil
}
