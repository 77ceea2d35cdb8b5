package topology

import (
	"encoding/json"
)

type unconnectedState struct {
	N int `json:"n"`
}

func (u *Unconnected) MarshalJSON() ([]byte, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	return json.Marshal(unconnectedState{N: u.n})
}

func (u *Unconnected) UnmarshalJSON(b []byte) error {
	var s unconnectedState
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	u.mu.Lock()
	u.n = s.N
	u.mu.Unlock()
	return nil
}

type weightedState struct {
	N int     `json:"n"`
	W float64 `json:"w"`
}

func (f *FullyConnected) MarshalJSON() ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return json.Marshal(weightedState{N: f.n, W: f.W})
}

func (f *FullyConnected) UnmarshalJSON(b []byte) error {
	var s weightedState
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if err := checkWeight(s.W); err != nil {
		return err
	}
	f.mu.Lock()
	f.n, f.W = s.N, s.W
	f.mu.Unlock()
	return nil
}

func (r *Ring) MarshalJSON() ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return json.Marshal(weightedState{N: r.n, W: r.W})
}

func (r *Ring) UnmarshalJSON(b []byte) error {
	var s weightedState
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if err := checkWeight(s.W); err != nil {
		return err
	}
	r.mu.Lock()
	r.n, r.W = s.N, s.W
	r.mu.Unlock()
	return nil
}
