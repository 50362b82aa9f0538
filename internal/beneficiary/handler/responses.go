package handler

import (
	"caredesk/internal/beneficiary/models"
	"caredesk/internal/beneficiary/service"
)

type ListResponse struct {
	Beneficiaries []*models.Beneficiary `json:"beneficiaries"`
}

// ReplicationResponse summarizes a create fanned out to every active branch.
// Beneficiary is the first record written.
type ReplicationResponse struct {
	Message        string              `json:"message"`
	Count          int                 `json:"count"`
	Beneficiary    *models.Beneficiary `json:"beneficiary"`
	FailedBranches []FailedBranch      `json:"failedBranches,omitempty"`
}

type FailedBranch struct {
	BranchID   string `json:"branchId"`
	BranchName string `json:"branchName"`
	Reason     string `json:"reason"`
}

type PriorityResponse struct {
	Priority int `json:"priority"`
}

func toReplicationResponse(result *service.CreateResult) ReplicationResponse {
	resp := ReplicationResponse{
		Message:     replicationMessage(result),
		Count:       len(result.Created),
		Beneficiary: result.First(),
	}
	for _, f := range result.Failed {
		resp.FailedBranches = append(resp.FailedBranches, FailedBranch{
			BranchID:   f.BranchID.String(),
			BranchName: f.BranchName,
			Reason:     f.Reason,
		})
	}
	return resp
}
